// Package output renders ranked repositories for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"githubhotspot/models"
)

// Format is an output encoding.
type Format string

const (
	TableOut Format = "table"
	JSONOut  Format = "json"
	YAMLOut  Format = "yaml"
)

// maxDescriptionWidth truncates descriptions in table output.
const maxDescriptionWidth = 48

// ParseFormat validates a --output flag value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", TableOut:
		return TableOut, nil
	case JSONOut:
		return JSONOut, nil
	case YAMLOut, "yml":
		return YAMLOut, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// Options controls rendering.
type Options struct {
	Format    Format
	UseColors bool
}

// repositoryRecord is the structured form of one ranked repository.
type repositoryRecord struct {
	Rank        int       `json:"rank" yaml:"rank"`
	FullName    string    `json:"fullName" yaml:"fullName"`
	Language    string    `json:"language" yaml:"language"`
	Stars       int       `json:"stars" yaml:"stars"`
	Forks       int       `json:"forks" yaml:"forks"`
	OpenIssues  int       `json:"openIssues" yaml:"openIssues"`
	Score       float64   `json:"score" yaml:"score"`
	Label       string    `json:"label" yaml:"label"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	PushedAt    time.Time `json:"pushedAt" yaml:"pushedAt"`
	HTMLURL     string    `json:"htmlUrl" yaml:"htmlUrl"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

func toRecords(repos []models.Repository) []repositoryRecord {
	records := make([]repositoryRecord, len(repos))
	for i, r := range repos {
		records[i] = repositoryRecord{
			Rank:        i + 1,
			FullName:    r.FullName,
			Language:    r.Language,
			Stars:       r.Stars,
			Forks:       r.Forks,
			OpenIssues:  r.OpenIssues,
			Score:       r.HotspotScore,
			Label:       PlainLabel(r.HotspotScore),
			CreatedAt:   r.CreatedAt,
			PushedAt:    r.PushedAt,
			HTMLURL:     r.HTMLURL,
			Description: r.Description,
		}
	}
	return records
}

// WriteRepositories renders repos in rank order.
func WriteRepositories(w io.Writer, repos []models.Repository, opts Options) error {
	switch opts.Format {
	case JSONOut:
		return writeJSON(w, toRecords(repos))
	case YAMLOut:
		return writeYAML(w, toRecords(repos))
	default:
		return writeRepositoryTable(w, repos, opts)
	}
}

// WriteLanguageStats renders per-language aggregates.
func WriteLanguageStats(w io.Writer, stats []models.LanguageStats, opts Options) error {
	switch opts.Format {
	case JSONOut:
		return writeJSON(w, stats)
	case YAMLOut:
		return writeYAML(w, stats)
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Language", "Repositories", "Avg Stars", "Avg Score"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(stats))
	for _, s := range stats {
		data = append(data, []string{
			s.Language,
			strconv.Itoa(s.RepositoryCount),
			strconv.FormatFloat(s.AverageStars, 'f', 1, 64),
			strconv.FormatFloat(s.AverageScore, 'f', 2, 64),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteWeights renders the active weight configuration.
func WriteWeights(w io.Writer, weights models.WeightConfig, opts Options) error {
	switch opts.Format {
	case JSONOut:
		return writeJSON(w, weights)
	case YAMLOut:
		return writeYAML(w, weights)
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Weight", "Value"})
	rows := [][]string{{"policy", string(weights.Policy)}}
	add := func(name string, v float64) {
		rows = append(rows, []string{name, strconv.FormatFloat(v, 'f', 2, 64)})
	}
	add("stars", weights.Stars)
	add("forks", weights.Forks)
	if weights.Policy == models.PolicyVelocity {
		add("commits", weights.Commits)
	} else {
		add("issues", weights.Issues)
		add("freshness", weights.Freshness)
		add("activity", weights.Activity)
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func writeRepositoryTable(w io.Writer, repos []models.Repository, opts Options) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Rank", "Repository", "Language", "Stars", "Forks", "Issues", "Score", "Label", "Description"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	label := PlainLabel
	if opts.UseColors {
		label = ColorLabel
	}

	data := make([][]string, 0, len(repos))
	for i, r := range repos {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			r.FullName,
			r.Language,
			strconv.Itoa(r.Stars),
			strconv.Itoa(r.Forks),
			strconv.Itoa(r.OpenIssues),
			strconv.FormatFloat(r.HotspotScore, 'f', 2, 64),
			label(r.HotspotScore),
			truncate(r.Description, maxDescriptionWidth),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
