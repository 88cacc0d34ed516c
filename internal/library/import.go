package library

import (
	"context"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ImportOptions overrides metadata discovered while importing.
type ImportOptions struct {
	BookID string
	Title  string
	Author string
}

var chapterExts = map[string]bool{".xhtml": true, ".html": true, ".htm": true}

var (
	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingTagRe = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	innerTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// ImportDir adds a book whose chapters are the XHTML/HTML files under dir,
// ordered lexically by their slash-separated relative path. That path is
// the chapter ID.
func (c *Catalog) ImportDir(ctx context.Context, dir string, opts ImportOptions) (*Book, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	root := os.DirFS(dir)
	var files []string
	err = fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if chapterExts[strings.ToLower(path.Ext(p))] {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no chapter files found in %s", dir)
	}
	sort.Strings(files)

	chapters := make([]Chapter, 0, len(files))
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := fs.ReadFile(root, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		content := string(data)
		chapters = append(chapters, Chapter{
			ID:      p,
			Title:   chapterTitle(content, p),
			Content: content,
		})
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	title := opts.Title
	if title == "" {
		title = filepath.Base(abs)
	}

	return c.AddBook(ctx, &Book{
		ID:        opts.BookID,
		Title:     title,
		Author:    opts.Author,
		SourceDir: abs,
	}, chapters)
}

// chapterTitle prefers <title>, then the first h1-h3, then the file name.
func chapterTitle(content, p string) string {
	for _, re := range []*regexp.Regexp{titleTagRe, headingTagRe} {
		if m := re.FindStringSubmatch(content); m != nil {
			t := strings.TrimSpace(html.UnescapeString(innerTagRe.ReplaceAllString(m[1], "")))
			if t != "" {
				return strings.Join(strings.Fields(t), " ")
			}
		}
	}
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
