package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"go.uber.org/multierr"

	"github.com/pithecene-io/stitch/adapter"
	"github.com/pithecene-io/stitch/adapter/redis"
	"github.com/pithecene-io/stitch/adapter/webhook"
	"github.com/pithecene-io/stitch/cli/config"
	"github.com/pithecene-io/stitch/dispatch"
	"github.com/pithecene-io/stitch/iox"
	"github.com/pithecene-io/stitch/lode"
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/observe"
	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/transport"
	"github.com/pithecene-io/stitch/types"
)

// defaultAdapterRetries applies when adapter.retries is omitted.
const defaultAdapterRetries = webhook.DefaultRetries

// shutdownTimeout bounds the final metrics write.
const shutdownTimeout = 10 * time.Second

// server is a running stitch node: receiver -> assembler -> dispatcher,
// with observers fanning events out to the logger, collector and journal.
type server struct {
	cfg       config.Config
	node      types.NodeMeta
	logger    *log.Logger
	collector *metrics.Collector

	journal    *lode.Journal
	journalObs *observe.JournalObserver
	observers  *observe.Multi
	assembler  *reassembly.Assembler
	dispatcher *dispatch.Dispatcher
	notifier   adapter.Adapter
	receiver   *transport.Receiver
}

// newServer builds every component and binds the UDP socket. On error,
// anything already started is closed.
func newServer(ctx context.Context, cfg config.Config, logger *log.Logger) (_ *server, err error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	node, err := nodeMeta(cfg.Node)
	if err != nil {
		return nil, err
	}

	s := &server{cfg: cfg, node: node, logger: logger}
	defer func() {
		if err != nil {
			_ = s.abort()
		}
	}()

	asmCfg, err := cfg.AssemblerConfig()
	if err != nil {
		return nil, err
	}
	s.collector = metrics.NewCollector(node.NodeID, cfg.Journal.Policy, cfg.Journal.Backend, string(asmCfg.DuplicatePolicy))

	s.journal, err = buildJournal(ctx, cfg, node)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	pol, err := buildPolicy(cfg.Journal, lode.NewInstrumentedSink(s.journal, s.collector), logger.Named("policy"))
	if err != nil {
		return nil, fmt.Errorf("invalid journal policy: %w", err)
	}
	obsCfg := observe.JournalConfig{
		QueueSize: cfg.Journal.QueueSize,
		Logger:    logger.Named("journal"),
	}
	if cfg.Journal.Policy != "streaming" {
		obsCfg.FlushInterval = cfg.Journal.FlushInterval.Duration
	}
	s.journalObs = observe.NewJournalObserver(pol, obsCfg)
	s.observers = observe.NewMulti(
		observe.NewLogObserver(logger.Named("assembler")),
		observe.NewMetricsObserver(s.collector),
		s.journalObs,
	)

	s.assembler, err = reassembly.New(asmCfg, s.observers)
	if err != nil {
		return nil, fmt.Errorf("invalid reassembly config: %w", err)
	}

	s.notifier, err = buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	dcfg := cfg.DispatcherConfig()
	dcfg.Logger = logger.Named("dispatch")
	dcfg.Collector = s.collector
	s.dispatcher = dispatch.New(dcfg)
	s.dispatcher.SetFallback(s.handler())
	// Workers outlive ctx so Close can drain the queue.
	s.dispatcher.Start(context.Background())

	s.receiver, err = transport.Listen(ctx, cfg.Listen, s.assembler, s.dispatcher, transport.ReceiverConfig{
		Readers:   cfg.Readers,
		Logger:    logger.Named("receiver"),
		Collector: s.collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	return s, nil
}

// handler is the fallback applied to every message type.
func (s *server) handler() dispatch.Handler {
	var handlers []dispatch.Handler
	if s.notifier != nil {
		cluster := ""
		if s.node.Cluster != nil {
			cluster = *s.node.Cluster
		}
		handlers = append(handlers, dispatch.NotifyHandler(s.notifier, s.node.NodeID, cluster))
	}
	if s.cfg.Journal.ArchivePayloads {
		handlers = append(handlers, dispatch.ArchiveHandler(s.journalObs))
	}
	return dispatch.Chain(handlers...)
}

// Addr returns the bound UDP address.
func (s *server) Addr() net.Addr {
	return s.receiver.Addr()
}

// run serves until ctx is canceled, then shuts down.
func (s *server) run(ctx context.Context) error {
	s.logger.Info("stitch listening", map[string]any{
		"addr":             s.Addr().String(),
		"readers":          s.cfg.Readers,
		"journal_backend":  s.cfg.Journal.Backend,
		"journal_policy":   s.cfg.Journal.Policy,
		"duplicate_policy": s.assembler.Config().DuplicatePolicy,
	})
	serveErr := s.receiver.Serve(ctx)
	return multierr.Append(serveErr, s.shutdown())
}

// shutdown stops intake, drains the dispatcher and the journal, and
// writes the final metrics snapshot.
func (s *server) shutdown() error {
	err := multierr.Combine(s.receiver.Close(), s.assembler.Close(), s.dispatcher.Close())
	if cerr := s.observers.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("journal close: %w", cerr))
	}

	stats := s.journalObs.Stats()
	s.collector.AbsorbPolicyStats(stats.TotalEvents, stats.EventsPersisted, stats.EventsDropped, stats.DroppedByKindStrings())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	snap := s.collector.Snapshot()
	if werr := s.journal.WriteMetrics(ctx, snap, time.Now()); werr != nil {
		err = multierr.Append(err, fmt.Errorf("metrics write: %w", werr))
	}
	err = multierr.Append(err, iox.CloseAll(s.notifier, s.journal))

	s.logger.Info("stitch stopped", map[string]any{
		"datagrams":          snap.DatagramsReceived,
		"messages_completed": snap.MessagesCompleted,
		"chunks_rejected":    snap.ChunksRejected,
		"timeouts":           snap.Timeouts,
		"events_persisted":   snap.EventsPersisted,
		"events_dropped":     snap.EventsDropped,
	})
	return err
}

// abort releases whatever newServer managed to start.
func (s *server) abort() error {
	return iox.CloseAll(s.receiver, s.assembler, s.dispatcher, s.observers, s.notifier, s.journal)
}

func nodeMeta(nc config.NodeConfig) (types.NodeMeta, error) {
	node := types.NodeMeta{NodeID: nc.ID}
	if node.NodeID == "" {
		host, err := os.Hostname()
		if err != nil {
			return node, fmt.Errorf("node.id is unset and hostname is unavailable: %w", err)
		}
		node.NodeID = host
	}
	if nc.Cluster != "" {
		cluster := nc.Cluster
		node.Cluster = &cluster
	}
	if err := node.Validate(); err != nil {
		return node, err
	}
	return node, nil
}

// buildJournal opens the journal dataset for the configured backend.
func buildJournal(ctx context.Context, cfg config.Config, node types.NodeMeta) (*lode.Journal, error) {
	jcfg := lode.Config{Dataset: cfg.Journal.Dataset, NodeID: node.NodeID}
	if node.Cluster != nil {
		jcfg.Cluster = *node.Cluster
	}

	switch cfg.Journal.Backend {
	case "fs":
		return lode.NewJournal(jcfg, cfg.Journal.Path)
	case "memory":
		return lode.NewJournalWithFactory(jcfg, lodelibrary.NewMemoryFactory())
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Journal.Path)
		return lode.NewJournalS3(ctx, jcfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Journal.Region,
			Endpoint:     cfg.Journal.Endpoint,
			UsePathStyle: cfg.Journal.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown journal backend: %s (must be fs, s3, or memory)", cfg.Journal.Backend)
	}
}

// buildPolicy selects the journal write policy.
func buildPolicy(jc config.JournalConfig, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch jc.Policy {
	case "strict":
		return policy.NewStrictPolicy(sink), nil

	case "buffered", "":
		bc := policy.DefaultBufferedConfig()
		if jc.BufferEvents > 0 {
			bc.MaxBufferEvents = jc.BufferEvents
		}
		if jc.BufferBytes > 0 {
			bc.MaxBufferBytes = jc.BufferBytes
		}
		bc.Logger = logger
		return policy.NewBufferedPolicy(sink, bc)

	case "streaming":
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    jc.FlushCount,
			FlushInterval: jc.FlushInterval.Duration,
			Logger:        logger,
		})

	case "noop":
		return policy.NewNoopPolicy(), nil

	default:
		return nil, fmt.Errorf("unknown policy: %s", jc.Policy)
	}
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	retries := defaultAdapterRetries
	if ac.Retries != nil {
		retries = *ac.Retries
	}

	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}
