// Command mrkmeans clusters the rows of a CSV file with iterative k-means
// over the local mr runtime.
//
//	mrkmeans [flags] <input.csv> <output-dir>
//
// The final centroids are written to <output-dir>/clusters.txt. With the
// -minio-* flags both paths are object keys in a bucket.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/daviddengcn/mrkmeans/eval"
	"github.com/daviddengcn/mrkmeans/kmeans"
	"github.com/daviddengcn/mrkmeans/sophie"
	"github.com/daviddengcn/mrkmeans/sophie/miniofs"
)

var (
	cfg = kmeans.DefaultConfig()

	timeSeed    = flag.Bool("time-seed", false, "seed the sampling with the current time")
	emptyPolicy = flag.String("empty", "reseed", "repair of empty clusters: reseed or hold")
	noLabel     = flag.Bool("no-label", false, "treat every column as a feature")
	spill       = flag.Bool("spill", false, "spill shuffled pairs to files instead of memory")
	useZstd     = flag.Bool("zstd", false, "compress imported records and spill files")
	doEval      = flag.Bool("eval", false, "print the contingency matrix against the label column")

	minioEndpoint  = flag.String("minio-endpoint", "", "S3-compatible endpoint; empty uses the local file system")
	minioAccessKey = flag.String("minio-access-key", os.Getenv("MINIO_ACCESS_KEY"), "access key")
	minioSecretKey = flag.String("minio-secret-key", os.Getenv("MINIO_SECRET_KEY"), "secret key")
	minioBucket    = flag.String("minio-bucket", "", "bucket")
	minioPrefix    = flag.String("minio-prefix", "", "key prefix inside the bucket")
	minioSecure    = flag.Bool("minio-secure", false, "use TLS")
)

func init() {
	flag.IntVar(&cfg.K, "k", cfg.K, "number of clusters")
	flag.IntVar(&cfg.DatasetSize, "n", cfg.DatasetSize, "number of rows to use, 0 for all")
	flag.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "convergence threshold of centroid movement")
	flag.IntVar(&cfg.MaxIterations, "max-iter", cfg.MaxIterations, "maximum number of iterations")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.IntVar(&cfg.Partitions, "partitions", cfg.Partitions, "number of input partitions")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "partitions processed at the same time, 0 for all")
	flag.BoolVar(&cfg.TrackProvenance, "provenance", cfg.TrackProvenance, "track row indices through the aggregation")
	flag.BoolVar(&cfg.AssignMembers, "members", cfg.AssignMembers, "run a final membership pass")
	flag.BoolVar(&cfg.KeepIntermediate, "keep", cfg.KeepIntermediate, "keep intermediate files")
}

func fileSystem() (sophie.FileSystem, error) {
	if *minioEndpoint == "" {
		return sophie.LocalFS, nil
	}
	if *minioBucket == "" {
		return nil, errors.New("-minio-bucket is required with -minio-endpoint")
	}
	client, err := minio.New(*minioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(*minioAccessKey, *minioSecretKey, ""),
		Secure: *minioSecure,
	})
	if err != nil {
		return nil, err
	}
	return miniofs.New(client, *minioBucket, *minioPrefix), nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input.csv> <output-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	if *timeSeed {
		cfg.SeedPolicy = kmeans.SeedTime
	}
	switch *emptyPolicy {
	case "reseed":
		cfg.EmptyPolicy = kmeans.EmptyReseed
	case "hold":
		cfg.EmptyPolicy = kmeans.EmptyHold
	default:
		log.Fatalf("Unknown -empty policy %q", *emptyPolicy)
	}
	cfg.LabelColumn = !*noLabel
	if *doEval {
		cfg.AssignMembers = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	fs, err := fileSystem()
	if err != nil {
		log.Fatalf("Opening storage failed: %v", err)
	}
	input := sophie.FsPath{Fs: fs, Path: flag.Arg(0)}
	output := sophie.FsPath{Fs: fs, Path: flag.Arg(1)}
	if err := output.Mkdir(0755); err != nil {
		log.Fatalf("Creating %v failed: %v", output.Path, err)
	}

	var workFs sophie.FileSystem = fs
	if *useZstd {
		workFs = sophie.ZstdFS{FileSystem: fs}
	}
	work := sophie.FsPath{Fs: workFs, Path: output.Join("work").Path}

	ds, err := kmeans.Import(cfg, input, work)
	if err != nil {
		log.Fatalf("Importing %v failed: %+v", input.Path, err)
	}

	ctrl, err := kmeans.NewController(cfg, ds, output)
	if err != nil {
		log.Fatal(err)
	}
	if *spill {
		ctrl.NewSorter = kmeans.FileSorters(work.Join("tmp"))
	}
	res, err := ctrl.Run()
	if err != nil {
		log.Fatalf("Clustering failed: %+v", err)
	}
	if !cfg.KeepIntermediate {
		if err := work.Remove(); err != nil {
			log.Printf("Removing %v failed: %v", work.Path, err)
		}
	}

	fmt.Printf("%v after %d iteration(s), centroids in %v\n", res.State, res.Iterations,
		output.Join(kmeans.FinalName).Path)
	for i, c := range res.Centroids {
		fmt.Printf("%d\t%v\n", i, c)
	}

	if *doEval {
		if ds.Labels == nil {
			log.Printf("No label column in %v, skipping evaluation", input.Path)
			return
		}
		m := eval.Contingency(res.Members, ds.Labels)
		fmt.Print(m)
		fmt.Printf("purity: %.4f\n", m.Purity())
	}
}
