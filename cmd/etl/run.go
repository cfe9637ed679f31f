package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/streametl/internal/pipeline"
	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/connector/core"
	"github.com/ajitpratap0/streametl/pkg/connector/registry"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/logger"
	"github.com/ajitpratap0/streametl/pkg/metrics"
	"github.com/ajitpratap0/streametl/pkg/observability"
	"github.com/ajitpratap0/streametl/pkg/version"
)

type runOptions struct {
	extractors []string
	transforms []string
	loader     string
	concat     bool
	zip        bool
	configFile string
	timeout    time.Duration
	metrics    string
	trace      bool
}

// settingFlags are bound to viper keys so that a flag, when given, wins
// over the environment and the pipeline file.
var settingFlags = []struct {
	name, key, usage string
}{
	{"columns", config.KeyColumns, "Comma-separated column names replacing the header row; empty disables shaping"},
	{"sheet", config.KeySheetNames, "Sheets to read by name or 1-based position, or * for all"},
	{"delimiter", config.KeyDelimiter, "Field delimiter for delimited text"},
	{"eol", config.KeyEOL, "Line ending written by text transforms"},
	{"level", config.KeyLevel, "Compression level for compressing transforms"},
	{"credentials", config.KeyCredentials, "Credentials file for cloud loaders"},
	{"log-level", config.KeyLogLevel, "Log level (debug, info, warn, error)"},
	{"log-format", config.KeyLogFormat, "Log encoding (console or json)"},
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline",
		Example: `  etl run -e people.csv -t json -l people.json
  etl run -e a.csv -e b.csv --extract-concat -t csv -l s3://bucket/all.csv.gz
  etl run --config pipeline.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd.Context(), cmd, v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.extractors, "extract", "e", nil, "Extractor: file path, URL or name (repeatable)")
	flags.StringArrayVarP(&opts.transforms, "transform", "t", nil, "Transform name, applied in order (repeatable)")
	flags.StringVarP(&opts.loader, "load", "l", "", "Loader: stdout, file path or URL (default stdout)")
	flags.BoolVar(&opts.concat, "extract-concat", false, "Read extractors one after another instead of interleaving")
	flags.BoolVar(&opts.zip, "extract-zip", false, "Merge the n-th record of every extractor into one record")
	flags.StringVar(&opts.configFile, "config", "", "Pipeline definition file (YAML)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Abort the run after this long (0 means no limit)")
	flags.StringVar(&opts.metrics, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&opts.trace, "trace", false, "Export trace spans to stderr")
	cmd.MarkFlagsMutuallyExclusive("extract-concat", "extract-zip")

	for _, f := range settingFlags {
		flags.String(f.name, "", f.usage)
		_ = v.BindPFlag(f.key, flags.Lookup(f.name))
	}
	flags.Bool("pretty", false, "Indent JSON output")
	_ = v.BindPFlag(config.KeyPretty, flags.Lookup("pretty"))
	flags.Int("batch-size", config.DefaultBatch, "Records per batch for database and broker loaders")
	_ = v.BindPFlag(config.KeyBatchSize, flags.Lookup("batch-size"))
	flags.Int("buffer-size", 16, "Records buffered between stages")
	_ = v.BindPFlag(config.KeyBufferSize, flags.Lookup("buffer-size"))
	flags.Int("chunk-size", config.DefaultChunk, "Read size in bytes for delimited text")
	_ = v.BindPFlag(config.KeyChunkSize, flags.Lookup("chunk-size"))

	return cmd
}

// definition merges the pipeline file, if any, beneath the flags.
func definition(v *viper.Viper, opts *runOptions) (*config.Pipeline, error) {
	def := &config.Pipeline{}
	if opts.configFile != "" {
		loaded, err := config.LoadPipeline(opts.configFile)
		if err != nil {
			return nil, err
		}
		if err := loaded.Apply(v); err != nil {
			return nil, err
		}
		def = loaded
	}

	if len(opts.extractors) > 0 {
		def.Extract.Sources = opts.extractors
	}
	if len(opts.transforms) > 0 {
		def.Transform = opts.transforms
	}
	if opts.loader != "" {
		def.Load = opts.loader
	}
	switch {
	case opts.concat:
		def.Extract.Mode = config.ModeConcat
	case opts.zip:
		def.Extract.Mode = config.ModeZip
	}
	if def.Load == "" {
		def.Load = "stdout"
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func runPipeline(ctx context.Context, cmd *cobra.Command, v *viper.Viper, opts *runOptions) error {
	def, err := definition(v, opts)
	if err != nil {
		return withCode(ExitInvalid, err)
	}
	settings, err := config.FromViper(v)
	if err != nil {
		return withCode(ExitSetup, err)
	}

	if err := logger.Init(logger.Config{
		Level:    settings.Log.Level,
		Encoding: settings.Log.Format,
	}); err != nil {
		return withCode(ExitSetup, fmt.Errorf("failed to initialize logger: %w", err))
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if opts.trace {
		cfg := observability.DefaultTracingConfig(version.Version)
		cfg.Writer = cmd.ErrOrStderr()
		shutdown, err := observability.Init(cfg)
		if err != nil {
			return withCode(ExitSetup, err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if opts.metrics != "" {
		mctx, stop := context.WithCancel(ctx)
		wg := metrics.Serve(mctx, metrics.ServerOpts{Addr: opts.metrics}, log)
		defer wg.Wait()
		defer stop()
	}

	source, err := resolveSources(ctx, def, settings, log)
	if err != nil {
		return withCode(ExitSetup, err)
	}

	transforms := make([]core.Transform, 0, len(def.Transform))
	for _, id := range def.Transform {
		t, err := registry.ResolveTransform(id, settings, log)
		if err != nil {
			_ = source.Close()
			return withCode(ExitSetup, err)
		}
		transforms = append(transforms, t)
	}

	sink, err := registry.ResolveSink(ctx, def.Load, settings, log)
	if err != nil {
		_ = source.Close()
		return withCode(ExitSetup, err)
	}

	p, err := pipeline.New(source, transforms, sink, &pipeline.Config{
		BufferSize: settings.BufferSize,
		Logger:     log,
	})
	if err != nil {
		_ = source.Close()
		if a, ok := sink.(core.Aborter); ok {
			a.Abort(err)
		}
		return withCode(ExitInvalid, err)
	}

	if err := p.Run(ctx); err != nil {
		log.Error("pipeline failed",
			zap.String("run_id", p.RunID()),
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err))
		return withCode(ExitFailed, err)
	}
	return nil
}

// resolveSources resolves every extractor and combines them according to
// the definition's mode. Already-resolved extractors are closed when a
// later one fails.
func resolveSources(ctx context.Context, def *config.Pipeline, settings *config.Settings, log *zap.Logger) (core.Source, error) {
	sources := make([]core.Source, 0, len(def.Extract.Sources))
	for _, id := range def.Extract.Sources {
		src, err := registry.ResolveSource(ctx, id, settings, log)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}

	switch def.Extract.Mode {
	case config.ModeConcat:
		return pipeline.Concat(sources...), nil
	case config.ModeZip:
		return pipeline.Zip(sources...), nil
	default:
		return pipeline.JoinWithBuffer(settings.BufferSize, sources...), nil
	}
}
