package config

type WorkerKeyStruct struct {
	PersistActivityQueue string
	PersistAnswersQueue  string
	PersistResultsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistActivityQueue: "persist_activity_queue",
	PersistAnswersQueue:  "persist_answers_queue",
	PersistResultsQueue:  "persist_results_queue",
}
