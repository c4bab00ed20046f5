package incident

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls where and in which formats Generate writes a Report.
type Config struct {
	OutputDir string
	Formats   []string // any of "markdown", "json"
}

// Generator renders Reports to disk.
type Generator struct {
	config Config
}

// NewGenerator builds a Generator. A zero Config defaults to markdown-only
// output under the current directory.
func NewGenerator(config Config) *Generator {
	if len(config.Formats) == 0 {
		config.Formats = []string{"markdown"}
	}
	if config.OutputDir == "" {
		config.OutputDir = "."
	}
	return &Generator{config: config}
}

// Generate writes report in every configured format and returns the paths
// written.
func (g *Generator) Generate(report *Report) ([]string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create incident output dir: %w", err)
	}

	var paths []string
	for _, format := range g.config.Formats {
		switch format {
		case "markdown":
			path, err := g.writeMarkdown(report)
			if err != nil {
				return paths, err
			}
			paths = append(paths, path)
		case "json":
			path, err := g.writeJSON(report)
			if err != nil {
				return paths, err
			}
			paths = append(paths, path)
		default:
			return paths, fmt.Errorf("unsupported incident report format: %s", format)
		}
	}
	return paths, nil
}

func (g *Generator) writeMarkdown(report *Report) (string, error) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Incident %s\n\n", report.ID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Process:** %s (pid %d)\n\n", report.ProcessName, report.PID))
	sb.WriteString(fmt.Sprintf("**Threat Score:** %d (%s)\n\n", report.ThreatScore, report.ThreatLevel))
	sb.WriteString(fmt.Sprintf("**Executable Blocked:** %t\n\n", report.ProcessBlocked))

	if len(report.Indicators) > 0 {
		sb.WriteString("## Triggered Indicators\n\n")
		for name, detail := range report.Indicators {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", name, detail))
		}
		sb.WriteString("\n")
	}

	if len(report.Actions) > 0 {
		sb.WriteString("## Response Actions\n\n")
		for _, a := range report.Actions {
			status := "ok"
			if !a.Success {
				status = "FAILED"
			}
			sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", a.Name, status, a.Detail))
		}
		sb.WriteString("\n")
	}

	if len(report.Files) > 0 {
		sb.WriteString("## Affected Files\n\n")
		for _, f := range report.Files {
			restored := ""
			if f.Restored {
				restored = ", restored"
			}
			sb.WriteString(fmt.Sprintf("- `%s` (backup #%d, integrity: %s%s)\n", f.Path, f.BackupID, f.Integrity, restored))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---\n")

	filename := fmt.Sprintf("incident_%s.md", report.ID)
	path := filepath.Join(g.config.OutputDir, filename)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write markdown incident report: %w", err)
	}
	return path, nil
}

func (g *Generator) writeJSON(report *Report) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal incident report: %w", err)
	}

	filename := fmt.Sprintf("incident_%s.json", report.ID)
	path := filepath.Join(g.config.OutputDir, filename)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write json incident report: %w", err)
	}
	return path, nil
}
