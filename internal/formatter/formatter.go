// package formatter renders song lists as CSV, Markdown, plain text or JSON and writes them to disk
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/musync/internal/models"
	"github.com/desertthunder/musync/internal/shared"
)

// Supported export formats
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists the supported export formats.
var Formats = []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// Row is one song in an export.
type Row struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album,omitempty"`
	AlbumCover string    `json:"album_cover,omitempty"`
	Platforms  []string  `json:"platforms"`
	AddedAt    time.Time `json:"added_at"`
}

// Export is a titled list of songs.
type Export struct {
	Title      string    `json:"title"`
	ExportedAt time.Time `json:"exported_at"`
	Songs      []Row     `json:"songs"`
}

// FromSongs builds an export from recorded songs. Platform IDs are replaced
// with display names when names has an entry for them.
func FromSongs(title string, songs []*models.Song, names map[string]string) *Export {
	rows := make([]Row, 0, len(songs))
	for _, s := range songs {
		platforms := make([]string, 0, len(s.Platforms))
		for _, id := range s.Platforms {
			if name, ok := names[id]; ok {
				id = name
			}
			platforms = append(platforms, id)
		}
		rows = append(rows, Row{
			Title:      s.Title,
			Artist:     s.Artist,
			Album:      s.Album,
			AlbumCover: s.AlbumCover,
			Platforms:  platforms,
			AddedAt:    s.AddedAt,
		})
	}
	return &Export{Title: title, ExportedAt: time.Now().UTC(), Songs: rows}
}

// FromPlatformSongs builds an export from provider tracks.
func FromPlatformSongs(title string, songs []models.PlatformSong) *Export {
	rows := make([]Row, 0, len(songs))
	for _, s := range songs {
		rows = append(rows, Row{
			Title:      s.Title,
			Artist:     s.Artist,
			Album:      s.Album,
			AlbumCover: s.AlbumCover,
			Platforms:  []string{s.PlatformType.DisplayName()},
			AddedAt:    s.AddedAt,
		})
	}
	return &Export{Title: title, ExportedAt: time.Now().UTC(), Songs: rows}
}

// ExportToCSV converts an Export to CSV format with columns: Title, Artist, Album, Platforms, Added
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Title", "Artist", "Album", "Platforms", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range export.Songs {
		record := []string{
			song.Title,
			song.Artist,
			song.Album,
			strings.Join(song.Platforms, ";"),
			formatDate(song.AddedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown format with optional cover image
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Title))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Songs**: %d\n", len(export.Songs)))
	buf.WriteString(fmt.Sprintf("**Exported**: %s\n\n", formatDate(export.ExportedAt)))

	buf.WriteString("## Songs\n\n")
	for i, song := range export.Songs {
		albumPart := ""
		if song.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", song.Album)
		}
		platformPart := ""
		if len(song.Platforms) > 0 {
			platformPart = fmt.Sprintf(" [%s]", strings.Join(song.Platforms, ", "))
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s%s\n", i+1, song.Artist, song.Title, albumPart, platformPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", export.Title))
	buf.WriteString(fmt.Sprintf("Songs: %d\n\n", len(export.Songs)))

	for i, song := range export.Songs {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, song.Artist, song.Title))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts an Export to indented JSON
func ExportToJSON(export *Export) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Render converts an Export to the named format.
func Render(export *Export, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export, "")
	case FormatJSON:
		return ExportToJSON(export)
	case FormatText, "":
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteExport renders export in format and writes it to dir/name plus the
// format's extension. Markdown exports get their own directory holding
// README.md and, when coverURL downloads, cover.jpg.
//
// It returns the files written.
func WriteExport(export *Export, format, dir, name, coverURL string) ([]string, error) {
	if format == FormatMarkdown {
		return writeMarkdownExport(export, filepath.Join(dir, name), coverURL)
	}

	data, err := Render(export, format)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name+Extension(format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return []string{path}, nil
}

// writeMarkdownExport creates {dir}/README.md and optionally {dir}/cover.jpg.
func writeMarkdownExport(export *Export, dir, coverURL string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	var coverFilename string
	if coverURL != "" {
		if imageData, err := DownloadImage(coverURL); err == nil {
			coverPath := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(coverPath, imageData, 0644); err == nil {
				coverFilename = "cover.jpg"
				files = append(files, coverPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return append(files, mdFile), nil
}

// ManifestEntry is one platform's line in an export manifest.
type ManifestEntry struct {
	Platform string   `json:"platform"`
	Status   string   `json:"status"`
	Songs    int      `json:"songs"`
	Files    []string `json:"files,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Manifest summarizes a library export.
type Manifest struct {
	Format     string          `json:"format"`
	ExportedAt time.Time       `json:"exported_at"`
	Successful int             `json:"successful_exports"`
	Failed     int             `json:"failed_exports"`
	Entries    []ManifestEntry `json:"platforms"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}
