package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/theme"
)

// ExportOptions configures a headless HTML export.
type ExportOptions struct {
	// Output is the destination for a single input. With several inputs
	// each page is written next to its source.
	Output     string
	Stylesheet string
	Logger     *slog.Logger
}

// ExportFiles renders each Markdown input into a standalone HTML page.
// Inputs are processed concurrently; the first failure cancels the rest.
func ExportFiles(ctx context.Context, inputs []string, opts ExportOptions) ([]string, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("export: no input files")
	}
	if opts.Output != "" && len(inputs) > 1 {
		return nil, fmt.Errorf("export: --output needs exactly one input, got %d", len(inputs))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	css, err := theme.New(opts.Stylesheet).CSS()
	if err != nil {
		return nil, err
	}

	jobs, err := exportJobs(inputs, opts.Output)
	if err != nil {
		return nil, err
	}

	files := storage.NewFS()
	renderer := render.NewGoldmark()
	outputs := make([]string, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			markdown, err := files.Read(job.src)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			page, err := render.Document(renderer, markdown, titleFromPath(job.src), css)
			if err != nil {
				return fmt.Errorf("export: render %s: %w", job.src, err)
			}
			if err := files.Write(job.dst, page); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			logger.Info("exported", slog.String("input", job.src), slog.String("output", job.dst))
			outputs[i] = job.dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

type exportJob struct {
	src, dst string
}

// exportJobs resolves every destination up front. A destination may not be
// its own source or shared by two inputs.
func exportJobs(inputs []string, output string) ([]exportJob, error) {
	jobs := make([]exportJob, 0, len(inputs))
	owners := make(map[string]string, len(inputs))
	for _, in := range inputs {
		src, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("export: resolve %s: %w", in, err)
		}
		dst := output
		if dst == "" {
			dst = htmlPath(src)
		}
		if dst, err = filepath.Abs(dst); err != nil {
			return nil, fmt.Errorf("export: resolve %s: %w", dst, err)
		}
		if dst == src {
			return nil, fmt.Errorf("export: %s would overwrite its own source", src)
		}
		if prev, ok := owners[dst]; ok {
			return nil, fmt.Errorf("export: %s and %s both export to %s", prev, src, dst)
		}
		owners[dst] = src
		jobs = append(jobs, exportJob{src: src, dst: dst})
	}
	return jobs, nil
}

// PreviewFile renders a Markdown file for the terminal and writes it to w.
func PreviewFile(w io.Writer, path, style string, width int) error {
	src, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("preview: resolve %s: %w", path, err)
	}
	markdown, err := storage.NewFS().Read(src)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	out, err := render.Terminal(markdown, style, width)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func htmlPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".html"
}

func titleFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
