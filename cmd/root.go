package cmd

import (
	"log"

	"github.com/mkarpov-dev/jobsieve/internal/job"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobsieve"
)

type Config struct {
	Profile  *ProfileConfig  `mapstructure:"profile"`
	Pipeline *PipelineConfig `mapstructure:"pipeline"`
	AI       *AIConfig       `mapstructure:"ai"`
	Index    *IndexConfig    `mapstructure:"index"`
}

// ProfileConfig is the candidate profile as configured, plus an optional
// resume file that fills ResumeText when the inline text is empty.
type ProfileConfig struct {
	job.CandidateProfile `mapstructure:",squash"`

	ResumeFile string `mapstructure:"resume-file"`
}

type PipelineConfig struct {
	RetrieveK          int `mapstructure:"retrieve-k"`
	RerankN            int `mapstructure:"rerank-n"`
	QuickThreshold     int `mapstructure:"quick-threshold"`
	MaxPostings        int `mapstructure:"max-postings"`
	MaxLLMCalls        int `mapstructure:"max-llm-calls"`
	Workers            int `mapstructure:"workers"`
	CallTimeoutSeconds int `mapstructure:"call-timeout-seconds"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey      string `mapstructure:"api-key"`
	APIKeyFile  string `mapstructure:"api-key-file"`
	JudgeModel  string `mapstructure:"judge-model"`
	TriageModel string `mapstructure:"triage-model"`
	EmbedModel  string `mapstructure:"embed-model"`
	Rerank      bool   `mapstructure:"rerank"`
}

// IndexConfig selects the similarity index. An empty URL runs the pipeline
// against the in-process index, which is enough for single-shot runs.
type IndexConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Collection string `mapstructure:"collection"`
	VectorSize uint64 `mapstructure:"vector-size"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobsieve is a cli for matching and scoring job postings against a candidate profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("index.api-key-file", "QDRANT_API_KEY_FILE"); err != nil {
		log.Fatalf("binding QDRANT_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobsieve.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for the match command. If there is no config, we can skip initialization
	if matchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
