// Command jffs2x lists and extracts the contents of JFFS2 filesystem
// images.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	jffs2 "github.com/xmoezzz/go-jffs2"
	"github.com/xmoezzz/go-jffs2/internal/xlog"
)

var (
	strict bool
	quiet  bool
)

func openImage(name string) (*jffs2.Reader, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return jffs2.ReaderConfig{Strict: strict}.NewReader(data)
}

func list(cmd *cobra.Command, args []string) error {
	r, err := openImage(args[0])
	if err != nil {
		return err
	}
	entries, err := r.Entries()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(w, "d\t\t%s\n", e.Path)
			continue
		}
		fmt.Fprintf(w, "f\t%d\t%s\n", e.Size, e.Path)
	}
	return w.Flush()
}

func extract(cmd *cobra.Command, args []string) error {
	target, err := cmd.Flags().GetString("directory")
	if err != nil {
		return err
	}
	r, err := openImage(args[0])
	if err != nil {
		return err
	}
	entries, err := r.Entries()
	if err != nil {
		return err
	}
	// Extraction continues past single-file failures; a damaged image
	// should still give up everything that can be recovered.
	failed := 0
	for _, e := range entries {
		name := filepath.FromSlash(e.Path)
		if !filepath.IsLocal(name) {
			xlog.Warnf("skipping %s: path escapes the target directory",
				e.Path)
			failed++
			continue
		}
		path := filepath.Join(target, name)
		if e.IsDir {
			err = os.MkdirAll(path, 0o755)
		} else {
			err = writeFile(r, e, path)
		}
		if err != nil {
			xlog.Warn(err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d entries could not be extracted", failed)
	}
	return nil
}

func writeFile(r *jffs2.Reader, e *jffs2.Entry, path string) error {
	data, err := r.ReadFile(e)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func main() {
	root := &cobra.Command{
		Use:           "jffs2x",
		Short:         "inspect and extract JFFS2 filesystem images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			xlog.Quiet = quiet
		},
	}
	root.PersistentFlags().BoolVar(&strict, "strict", false,
		"verify node checksums")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress warnings")

	listCmd := &cobra.Command{
		Use:   "list IMAGE",
		Short: "list the entries of an image",
		Args:  cobra.ExactArgs(1),
		RunE:  list,
	}
	extractCmd := &cobra.Command{
		Use:   "extract IMAGE",
		Short: "extract all entries of an image",
		Args:  cobra.ExactArgs(1),
		RunE:  extract,
	}
	extractCmd.Flags().StringP("directory", "C", ".",
		"directory to extract into")
	root.AddCommand(listCmd, extractCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jffs2x:", err)
		os.Exit(1)
	}
}
