package cfg

type Cfg struct {
	// Input / output locations
	RegistryPath string
	DataDir      string

	// GitHub access
	GitHubToken string

	// Pipeline tuning
	WorkerCount     int
	FetchTimeout    int
	ProbeBatchSize  int
	EnrichBatchSize int
	RotationSize    int
	RetryPasses     int

	// Run selection
	SourceFilter string
	RangeStart   int
	RangeCount   int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
