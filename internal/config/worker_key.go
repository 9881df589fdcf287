package config

type WorkerKeyStruct struct {
	DeclareResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	DeclareResultsQueue: "declare_results_queue",
}
