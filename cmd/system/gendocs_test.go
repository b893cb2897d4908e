package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestGenDocs(t *testing.T) {
	tests := []struct {
		format string
		file   string
	}{
		{"markdown", "karsaz.md"},
		{"man", "karsaz.1"},
		{"rest", "karsaz.rst"},
		{"yaml", "karsaz.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()
			root := &cobra.Command{Use: "karsaz"}
			root.AddCommand(NewGenDocsCommand())
			root.SetArgs([]string{"gendocs", "--outdir", dir, "--format", tt.format})

			if err := root.Execute(); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, tt.file)); err != nil {
				t.Errorf("expected %s: %v", tt.file, err)
			}
		})
	}
}

func TestGenDocs_UnknownFormat(t *testing.T) {
	root := &cobra.Command{Use: "karsaz"}
	root.AddCommand(NewGenDocsCommand())
	root.SetArgs([]string{"gendocs", "--outdir", t.TempDir(), "--format", "pdf"})
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
