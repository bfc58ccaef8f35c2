/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/linetran/internal/config"
	"github.com/valpere/linetran/internal/runner"
	"github.com/valpere/linetran/internal/store"
	"github.com/valpere/linetran/internal/translator"
)

// buildService constructs the batch service named in cfg.
func buildService(cfg *config.Config) (translator.BatchService, error) {
	sc := translator.ServiceConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	switch cfg.Service {
	case config.ServiceAnthropic:
		return translator.NewAnthropicService(sc), nil
	case config.ServiceOpenRouter:
		return translator.NewOpenRouterService(sc), nil
	default:
		return nil, fmt.Errorf("unknown service: %s", cfg.Service)
	}
}

// buildJobs pairs inputs with outputs. Without explicit outputs every input is
// written under outputDir with its own base name.
func buildJobs(inputs, outputs []string, outputDir string) ([]runner.Job, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one input file is required")
	}
	if len(outputs) > 0 && len(outputs) != len(inputs) {
		return nil, fmt.Errorf("got %d input files but %d output files", len(inputs), len(outputs))
	}

	jobs := make([]runner.Job, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, in := range inputs {
		out := filepath.Join(outputDir, filepath.Base(in))
		if len(outputs) > 0 {
			out = outputs[i]
		}
		if prev, ok := seen[out]; ok {
			return nil, fmt.Errorf("%s and %s would both be written to %s", prev, in, out)
		}
		seen[out] = in
		jobs[i] = runner.Job{Input: in, Output: out}
	}
	return jobs, nil
}

// openStore opens the database at path, creating its directory. An empty path
// disables the store.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// mustOpenStore is openStore for commands that cannot work without a database.
func mustOpenStore() (*store.Store, error) {
	path := v.GetString("db")
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return openStore(path)
}
