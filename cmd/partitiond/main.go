package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flowmesh/partitiond/pkg/diskspace"
	"github.com/flowmesh/partitiond/pkg/health"
	"github.com/flowmesh/partitiond/pkg/log"
	"github.com/flowmesh/partitiond/pkg/logstorage"
	"github.com/flowmesh/partitiond/pkg/metrics"
	"github.com/flowmesh/partitiond/pkg/partition"
	"github.com/flowmesh/partitiond/pkg/raftadapter"
	"github.com/flowmesh/partitiond/pkg/snapshot"
	"github.com/flowmesh/partitiond/pkg/streamproc"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "partitiond",
	Short:   "partitiond runs a single Raft partition controller",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("partitiond version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single partition's controller against a bootstrapped Raft node",
	Long: `Run brings up one node's slice of one partition: a single-node Raft
cluster, the log-storage and snapshot stores backing it, and the actor
that installs leader or follower services as Raft's role changes.

It is meant to be run once per (node, partition) pair behind whatever
process supervisor places partitions onto nodes; it does not itself
handle multi-node cluster membership.`,
	RunE: runPartition,
}

func init() {
	runCmd.Flags().String("node-id", "node-1", "Unique node ID")
	runCmd.Flags().Uint32("partition-id", 0, "Partition ID this process controls")
	runCmd.Flags().String("raft-bind", "127.0.0.1:7946", "Address for Raft communication")
	runCmd.Flags().String("data-dir", "./partitiond-data", "Data directory for Raft and partition state")
	runCmd.Flags().String("health-addr", "127.0.0.1:9090", "Address to serve /metrics and /healthz on")
	runCmd.Flags().Duration("snapshot-interval", 5*time.Minute, "How often a leader forces a Raft snapshot")
	runCmd.Flags().Duration("export-interval", 10*time.Second, "How often a leader exports applied records")
	runCmd.Flags().Duration("compaction-interval", time.Minute, "How often a leader compacts log-storage index mappings")
	runCmd.Flags().Uint64("compaction-retention", 10000, "Number of most-recent index mappings a leader keeps uncompacted")
	runCmd.Flags().String("sink-health-addr", "", "TCP address of the export sink to poll for reachability while leader (disabled if empty)")
	runCmd.Flags().String("sink-health-url", "", "HTTP URL of the export sink to poll for reachability while leader; takes precedence over --sink-health-addr (disabled if empty)")
	runCmd.Flags().Uint64("disk-space-threshold-bytes", diskspace.DefaultThresholdBytes, "Free space on --data-dir below which the partition pauses processing")
	runCmd.Flags().Duration("disk-space-interval", 10*time.Second, "How often free space on --data-dir is sampled")
}

func runPartition(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	partitionID, _ := cmd.Flags().GetUint32("partition-id")
	bindAddr, _ := cmd.Flags().GetString("raft-bind")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	healthAddr, _ := cmd.Flags().GetString("health-addr")
	snapshotInterval, _ := cmd.Flags().GetDuration("snapshot-interval")
	exportInterval, _ := cmd.Flags().GetDuration("export-interval")
	compactionInterval, _ := cmd.Flags().GetDuration("compaction-interval")
	compactionRetention, _ := cmd.Flags().GetUint64("compaction-retention")
	sinkHealthAddr, _ := cmd.Flags().GetString("sink-health-addr")
	sinkHealthURL, _ := cmd.Flags().GetString("sink-health-url")
	diskSpaceThreshold, _ := cmd.Flags().GetUint64("disk-space-threshold-bytes")
	diskSpaceInterval, _ := cmd.Flags().GetDuration("disk-space-interval")

	identity := partition.Identity{NodeID: nodeID, PartitionID: partitionID}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	adapter, err := bootstrapRaft(identity, bindAddr, dataDir)
	if err != nil {
		return fmt.Errorf("bootstrapping raft: %w", err)
	}

	logStore, err := logstorage.Open(filepath.Join(dataDir, "log-storage.db"))
	if err != nil {
		return fmt.Errorf("opening log storage: %w", err)
	}
	defer logStore.Close()

	manifest, err := snapshot.OpenManifest(filepath.Join(dataDir, "snapshot-manifest.db"))
	if err != nil {
		return fmt.Errorf("opening snapshot manifest: %w", err)
	}
	defer manifest.Close()

	deps := &partition.Deps{
		LogStore:            logStore,
		StreamSource:        noopSource{},
		ExportSink:          noopSink{},
		SnapshotManifest:    manifest,
		Snapshotter:         adapter,
		SnapshotInterval:    snapshotInterval,
		ExportInterval:      exportInterval,
		CompactionInterval:  compactionInterval,
		CompactionRetention: compactionRetention,
	}
	switch {
	case sinkHealthURL != "":
		deps.SinkHealthChecker = health.NewHTTPChecker(sinkHealthURL)
		deps.SinkHealthConfig = health.DefaultConfig()
	case sinkHealthAddr != "":
		deps.SinkHealthChecker = health.NewTCPChecker(sinkHealthAddr)
		deps.SinkHealthConfig = health.DefaultConfig()
	}

	actor := partition.NewActor(identity, adapter, deps, nil)

	logger := log.WithPartition(nodeID, partitionID)

	ctx := context.Background()
	if err := actor.Start(ctx).Wait(ctx); err != nil {
		return fmt.Errorf("starting actor: %w", err)
	}
	logger.Info().Msg("partition controller started")

	collector := partition.NewMetricsCollector(actor, identity, 10*time.Second)
	collector.Start()
	defer collector.Close()

	diskWatcher := diskspace.New(dataDir, diskSpaceThreshold, diskSpaceInterval)
	diskWatcher.OnAvailable = actor.OnDiskSpaceAvailable
	diskWatcher.OnNotAvailable = actor.OnDiskSpaceNotAvailable
	diskWatcher.Start()
	defer diskWatcher.Close()

	serveHealth(healthAddr, actor, logger)

	waitForShutdown()

	logger.Info().Msg("shutting down partition controller")
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := actor.CloseAsync(closeCtx).Wait(closeCtx); err != nil {
		logger.Warn().Err(err).Msg("partition controller shutdown did not complete cleanly")
	}

	return nil
}

// bootstrapRaft brings up a single-node Raft cluster over raft-boltdb log
// and stable stores and a file snapshot store, and wraps it as the
// RaftHandle the actor drives.
func bootstrapRaft(identity partition.Identity, bindAddr, dataDir string) (*raftadapter.Adapter, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(identity.String())

	addr, err := net.ResolveTCPAddr("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving raft bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft stable store: %w", err)
	}

	fsm := raftadapter.NewFSM()
	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("creating raft node: %w", err)
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: config.LocalID, Address: transport.LocalAddr()},
		},
	}
	if err := r.BootstrapCluster(configuration).Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("bootstrapping raft cluster: %w", err)
	}

	return raftadapter.New(r, snapshotStore), nil
}

func serveHealth(addr string, actor *partition.Actor, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if actor.HealthStatus() != health.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "unhealthy")
			return
		}
		fmt.Fprintln(w, "ok")
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn().Err(err).Msg("health/metrics server exited")
		}
	}()
	logger.Info().Str("addr", addr).Msg("health/metrics endpoint listening")
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// noopSource and noopSink stand in for the externally-owned record
// application and export transports this module deliberately leaves out
// of scope; a real deployment supplies its own streamproc.Source and
// exporter.Sink implementations wired to its actual data plane.
type noopSource struct{}

func (noopSource) Drain(ctx context.Context, mode streamproc.Mode) (uint64, error) { return 0, nil }

type noopSink struct{}

func (noopSink) Export(ctx context.Context, upToOffset uint64) error { return nil }
