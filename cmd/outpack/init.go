package main

import (
	"github.com/spf13/cobra"

	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/root"
)

func newInitCommand() *cobra.Command {
	var (
		pathArchive         string
		useFileStore        bool
		requireCompleteTree bool
		hashAlgorithm       string
		s3MirrorBucket      string
		s3MirrorPrefix      string
		s3MirrorRegion      string
	)

	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Create a new repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Options{
				HashAlgorithm:       hashAlgorithm,
				UseFileStore:        useFileStore,
				RequireCompleteTree: requireCompleteTree,
			}
			if pathArchive != "" {
				opts.PathArchive = &pathArchive
			}
			if s3MirrorBucket != "" {
				opts.S3Mirror = &config.S3Mirror{Bucket: s3MirrorBucket, Prefix: s3MirrorPrefix, Region: s3MirrorRegion}
			}
			_, err := root.Init(args[0], opts)
			return err
		},
	}

	cmd.Flags().StringVar(&pathArchive, "path-archive", "archive", "directory (relative to the repository) to keep an unpacked copy of every packet in; empty disables it")
	cmd.Flags().BoolVar(&useFileStore, "use-file-store", false, "keep a content-addressed store of file contents, deduplicated across packets")
	cmd.Flags().BoolVar(&requireCompleteTree, "require-complete-tree", false, "reject a pull that would leave a packet's dependencies incomplete")
	cmd.Flags().StringVar(&hashAlgorithm, "hash-algorithm", "sha256", "hash algorithm used for file and metadata digests")
	cmd.Flags().StringVar(&s3MirrorBucket, "s3-mirror-bucket", "", "mirror the file store's blobs into this S3 bucket; empty disables mirroring")
	cmd.Flags().StringVar(&s3MirrorPrefix, "s3-mirror-prefix", "", "key prefix for objects written to the S3 mirror")
	cmd.Flags().StringVar(&s3MirrorRegion, "s3-mirror-region", "", "AWS region for the S3 mirror; empty resolves from the environment")
	return cmd
}
