package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"golang.org/x/term"
)

// issue-token signs a bearer token for a student or proctor. Accounts live in
// the school's identity provider; this tool is for operators and load tests.
func main() {
	kind := flag.String("type", "", "Token type: student or proctor")
	subject := flag.String("sub", "", "Student or proctor id")
	perms := flag.String("perms", "", "Comma-separated proctor permissions, or \"all\"")
	flag.Parse()

	cfg := config.Load()
	reader := bufio.NewReader(os.Stdin)

	fmt.Fprintln(os.Stderr, "=== Issue Access Token ===")

	if *kind == "" {
		*kind = prompt(reader, "Token type (student/proctor): ")
	}
	if *subject == "" {
		*subject = prompt(reader, "Subject id: ")
	}
	if *subject == "" {
		fail("Subject id is required")
	}

	// Secret
	if cfg.JWTSecret == "" {
		fmt.Fprint(os.Stderr, "JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fail("Error reading secret")
		}
		cfg.JWTSecret = strings.TrimSpace(string(secret))
		if cfg.JWTSecret == "" {
			fail("JWT secret is required")
		}
	}

	auth := service.NewAuthService(cfg)

	var (
		token string
		err   error
	)
	switch service.TokenType(strings.ToLower(*kind)) {
	case service.TokenTypeStudent:
		token, err = auth.GenerateStudentToken(*subject)
	case service.TokenTypeProctor:
		if *perms == "" {
			*perms = prompt(reader, "Permissions (comma-separated, or all): ")
		}
		codes, perr := parsePermissions(*perms)
		if perr != nil {
			fail(perr.Error())
		}
		token, err = auth.GenerateProctorToken(*subject, codes)
	default:
		fail("Token type must be student or proctor")
	}
	if err != nil {
		fail("Failed to sign token: " + err.Error())
	}

	fmt.Println(token)
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// parsePermissions validates codes against model.AllPermissions.
func parsePermissions(raw string) ([]string, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return model.PermissionCodes(model.AllPermissions), nil
	}

	known := make(map[string]bool, len(model.AllPermissions))
	for _, p := range model.AllPermissions {
		known[string(p)] = true
	}

	var codes []string
	for _, code := range strings.Split(raw, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if !known[code] {
			return nil, fmt.Errorf("unknown permission %q", code)
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one permission is required")
	}
	return codes, nil
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	os.Exit(1)
}
