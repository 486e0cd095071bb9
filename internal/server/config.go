package server

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/replication"
)

// Config is the node configuration assembled from command-line flags.
type Config struct {
	Port  int
	Self  int
	Peers string
	// Leader fixes the leader index and disables elections. -1 runs
	// elections.
	Leader          int
	DataDir         string
	PollTimeout     time.Duration
	PollParallelism int
	MaxBody         datasize.ByteSize
	ClusterSecret   string
}

// ParseConfig reads flags from args (without the program name).
func ParseConfig(args []string) (Config, error) {
	var cfg Config
	var maxBody string

	fs := flag.NewFlagSet("chunkdir", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 8080, "HTTP listen port")
	fs.IntVar(&cfg.Self, "self", 0, "Index of this node in -peers")
	fs.StringVar(&cfg.Peers, "peers", "", "Comma-separated member URLs in directory order (e.g. http://a:8080,http://b:8080)")
	fs.IntVar(&cfg.Leader, "leader", -1, "Fixed leader index; -1 elects one")
	fs.StringVar(&cfg.DataDir, "data-dir", "", "Badger directory; empty keeps everything in memory")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", replication.DefaultPollTimeout, "Deadline for each entry poll")
	fs.IntVar(&cfg.PollParallelism, "poll-parallelism", 1, "Entry polls in flight at once")
	fs.StringVar(&maxBody, "max-body", "1MB", "Largest accepted request body")
	fs.StringVar(&cfg.ClusterSecret, "cluster-secret", "", "Shared secret signing peer RPCs; empty disables auth")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.MaxBody.UnmarshalText([]byte(maxBody)); err != nil {
		return Config{}, fmt.Errorf("invalid -max-body %q: %w", maxBody, err)
	}
	if cfg.Peers == "" {
		cfg.Peers = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.PollTimeout <= 0 {
		return Config{}, errors.New("-poll-timeout must be positive")
	}
	if cfg.PollParallelism < 1 {
		return Config{}, errors.New("-poll-parallelism must be at least 1")
	}
	return cfg, nil
}
