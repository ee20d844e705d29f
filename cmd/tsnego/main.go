// Package main is the tsnego command line tool.
//
// It embeds the rows of a CSV file and writes the coordinates as CSV, or
// stores them as a snapshot in a local directory, S3 or MinIO:
//
//	tsnego -perplexity 30 -iterations 1000 data.csv > embedding.csv
//	tsnego -store s3 -bucket embeddings -snapshot run1.tsne data.csv
//	tsnego -store local -root ./snapshots -load run1.tsne > embedding.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/tsnego"
	"github.com/hupe1980/tsnego/affinity"
	"github.com/hupe1980/tsnego/distance"
	"github.com/hupe1980/tsnego/model"
	"github.com/hupe1980/tsnego/optimizer"
	"github.com/hupe1980/tsnego/resource"
	"github.com/hupe1980/tsnego/snapshot"
)

var (
	perplexity    = flag.Float64("perplexity", 40, "target effective number of neighbors")
	dimensions    = flag.Int("dims", 2, "output dimensionality")
	iterations    = flag.Int("iterations", 1000, "number of gradient steps")
	learningRate  = flag.Float64("lr", 200, "learning rate")
	stepLimit     = flag.Float64("step-limit", optimizer.DefaultStepLimit, "upper bound of learning rate times the largest affinity, 0 disables")
	momentum      = flag.Float64("momentum", 0.8, "final momentum")
	theta         = flag.Float64("theta", 0.5, "Barnes-Hut opening angle (0 is exact)")
	leafCapacity  = flag.Int("leaf", 10, "maximum points per tree leaf")
	exaggeration  = flag.Float64("exaggeration", 4, "early exaggeration factor")
	exaggerateFor = flag.Int("exaggeration-iterations", 100, "iteration after which exaggeration is removed")
	seed          = flag.Int64("seed", 0, "seed of the random initial embedding")
	method        = flag.String("method", "barnes-hut", "barnes-hut or exact")
	metricName    = flag.String("metric", "sqeuclidean", "input distance: sqeuclidean, euclidean, manhattan or cosine")
	workers       = flag.Int("workers", 1, "goroutines per run")
	intrinsic     = flag.Bool("intrinsic", false, "adapt affinities to the local intrinsic dimensionality")
	memoryLimit   = flag.Int64("memory-limit", 0, "working memory limit in bytes (0 is unbounded)")

	header   = flag.Bool("header", false, "the input CSV starts with a header row")
	idColumn = flag.Int("id-column", -1, "column holding integer item IDs (-1 numbers rows)")
	output   = flag.String("o", "", "output CSV (default stdout)")

	storeKind   = flag.String("store", "", "snapshot store: local, s3 or minio")
	root        = flag.String("root", ".", "local store directory")
	bucket      = flag.String("bucket", "", "bucket of the s3 or minio store")
	prefix      = flag.String("prefix", "", "key prefix inside the bucket")
	endpoint    = flag.String("endpoint", "", "s3 or minio endpoint")
	accessKey   = flag.String("access-key", os.Getenv("MINIO_ACCESS_KEY"), "minio access key")
	secretKey   = flag.String("secret-key", os.Getenv("MINIO_SECRET_KEY"), "minio secret key")
	insecure    = flag.Bool("insecure", false, "talk plain HTTP to minio")
	snapName    = flag.String("snapshot", "", "save the embedding under this name (\"auto\" picks one)")
	loadName    = flag.String("load", "", "export a stored snapshot instead of embedding")
	precision   = flag.String("precision", "float64", "snapshot precision: float64, float32 or float16")
	compression = flag.String("compression", "lz4", "snapshot compression: none, lz4 or zstd")
	ioLimit     = flag.Int64("io-limit", 0, "snapshot IO limit in bytes per second (0 is unlimited)")

	verbose  = flag.Bool("v", false, "log progress to stderr")
	jsonLogs = flag.Bool("json", false, "log JSON instead of text")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [input.csv]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := newLogger()

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   *memoryLimit,
		IOLimitBytesPerSec: *ioLimit,
	})

	if *loadName != "" {
		store, err := openStore(ctx, *storeKind)
		if err != nil {
			return err
		}
		emb, err := snapshot.Load(ctx, store, *loadName, func(o *snapshot.Options) {
			o.Resource = rc
		})
		if err != nil {
			return err
		}
		return writeOutput(emb)
	}

	in, closeIn, err := openInput(flag.Arg(0))
	if err != nil {
		return err
	}
	defer closeIn()

	rel, err := readCSV(in, *header, *idColumn)
	if err != nil {
		return err
	}

	e, err := newEmbedder(logger, rc)
	if err != nil {
		return err
	}

	metric, err := distance.ParseMetric(*metricName)
	if err != nil {
		return err
	}
	q, err := distance.NewVectorQuery(rel, metric)
	if err != nil {
		return err
	}

	emb, err := e.Embed(ctx, rel, q)
	if err != nil {
		return err
	}

	if *snapName != "" {
		return saveSnapshot(ctx, logger, rc, emb)
	}
	return writeOutput(emb)
}

func newLogger() *tsnego.Logger {
	if !*verbose {
		return tsnego.NoopLogger()
	}
	if *jsonLogs {
		return tsnego.NewJSONLogger(slog.LevelInfo)
	}
	return tsnego.NewTextLogger(slog.LevelInfo)
}

func newEmbedder(logger *tsnego.Logger, rc *resource.Controller) (*tsnego.Embedder, error) {
	m, err := tsnego.ParseMethod(*method)
	if err != nil {
		return nil, err
	}

	opts := []tsnego.Option{
		tsnego.WithPerplexity(*perplexity),
		tsnego.WithDimensions(*dimensions),
		tsnego.WithIterations(*iterations),
		tsnego.WithLearningRate(*learningRate),
		tsnego.WithStepLimit(*stepLimit),
		tsnego.WithFinalMomentum(*momentum),
		tsnego.WithTheta(*theta),
		tsnego.WithLeafCapacity(*leafCapacity),
		tsnego.WithEarlyExaggeration(*exaggeration, *exaggerateFor),
		tsnego.WithSeed(*seed),
		tsnego.WithMethod(m),
		tsnego.WithWorkers(*workers),
		tsnego.WithLogger(logger),
		tsnego.WithResourceController(rc),
	}
	if *intrinsic {
		opts = append(opts, tsnego.WithDistanceTransform(affinity.IntrinsicDimensionality{}))
	}
	return tsnego.New(opts...)
}

func saveSnapshot(ctx context.Context, logger *tsnego.Logger, rc *resource.Controller, emb *model.Embedding) error {
	store, err := openStore(ctx, *storeKind)
	if err != nil {
		return err
	}
	p, err := snapshot.ParsePrecision(*precision)
	if err != nil {
		return err
	}
	c, err := snapshot.ParseCompression(*compression)
	if err != nil {
		return err
	}

	name := *snapName
	if name == "auto" {
		name = ""
	}
	name, err = snapshot.Save(ctx, store, name, emb, func(o *snapshot.Options) {
		o.Precision = p
		o.Compression = c
		o.Resource = rc
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "snapshot saved", "name", name, "precision", p, "compression", c)
	fmt.Println(name)
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func writeOutput(emb *model.Embedding) (err error) {
	if *output == "" {
		return writeCSV(os.Stdout, emb)
	}
	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return writeCSV(f, emb)
}
