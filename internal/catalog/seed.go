package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/sqlgym/internal/models"
)

// seedManifest is the on-disk format of a task seed directory: a
// manifest.yaml next to the template database files it references.
type seedManifest struct {
	Tasks []seedTask `yaml:"tasks"`
}

type seedTask struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       string `yaml:"level"`
	Answer      string `yaml:"answer"`
	Price       int    `yaml:"price"`
	File        string `yaml:"file"`
}

// SeedFromDir loads tasks declared in dir/manifest.yaml into the catalog.
// Tasks whose name already exists are skipped, so seeding is safe to run
// on every startup.
func (c *Catalog) SeedFromDir(ctx context.Context, dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return fmt.Errorf("failed to read seed manifest: %w", err)
	}

	var manifest seedManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse seed manifest: %w", err)
	}

	existing, err := c.repo.ListTasks(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]bool, len(existing))
	for _, t := range existing {
		byName[t.Name] = true
	}

	var seeded int
	for _, entry := range manifest.Tasks {
		if byName[entry.Name] {
			slog.Debug("seed task already present", "name", entry.Name)
			continue
		}

		f, err := os.Open(filepath.Join(dir, entry.File))
		if err != nil {
			return fmt.Errorf("failed to open seed template %s: %w", entry.File, err)
		}

		task, err := c.Create(ctx, CreateTaskInput{
			Name:        entry.Name,
			Description: entry.Description,
			Level:       models.Level(entry.Level),
			Answer:      entry.Answer,
			Price:       entry.Price,
			Template:    f,
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to seed task %s: %w", entry.Name, err)
		}

		slog.Info("seeded task", "id", task.ID, "name", task.Name, "level", task.Level)
		seeded++
	}

	slog.Info("task seeding complete", "seeded", seeded, "skipped", len(manifest.Tasks)-seeded)
	return nil
}
