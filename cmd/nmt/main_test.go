package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golangast/nmt/neural/nnu/config"
	"github.com/golangast/nmt/neural/nnu/dataset"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTrainRequiresDataFolder(t *testing.T) {
	rootCmd.SetArgs([]string{"train", "--log-level", "error"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error without --data-folder")
	}
}

// Runs after TestTrainRequiresDataFolder: cobra keeps flag values between
// executions of the same command.
func TestTrainThenTranslate(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "machine_translation")
	if err := os.Mkdir(data, 0o755); err != nil {
		t.Fatal(err)
	}
	de := "ein haus .\nzwei katzen .\nein hund .\n"
	en := "a house .\ntwo cats .\na dog .\n"
	for _, split := range []string{"train", "dev"} {
		writeFile(t, filepath.Join(data, split+".de"), de)
		writeFile(t, filepath.Join(data, split+".en"), en)
	}
	checkpoint := filepath.Join(dir, "model.gob")

	rootCmd.SetArgs([]string{
		"train", "--log-level", "error",
		"--data-folder", dir,
		"--checkpoint", checkpoint,
		"--min-freq", "1",
		"--enc-emb-dim", "4", "--dec-emb-dim", "4", "--hid-dim", "6",
		"--batch-size", "2", "--epochs", "2",
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := os.Stat(checkpoint); err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("ein haus .\n\nzwei katzen .\n"))
	rootCmd.SetArgs([]string{"translate", "--log-level", "error", "--model", checkpoint, "--max-len", "5"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Fatalf("got %d translations, want 2: %q", n, out.String())
	}
	for _, line := range strings.Split(out.String(), "\n") {
		if n := len(strings.Fields(line)); n > 5 {
			t.Errorf("translation %q longer than --max-len", line)
		}
	}
}

func TestLoadCorpusFiltersBothSplits(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "machine_translation")
	if err := os.Mkdir(data, 0o755); err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("word ", 30)
	writeFile(t, filepath.Join(data, "train.de"), "ein haus\nzu lang\n")
	writeFile(t, filepath.Join(data, "train.en"), "a house\n"+long+"\n")
	writeFile(t, filepath.Join(data, "dev.de"), "zu lang\nzwei katzen\n")
	writeFile(t, filepath.Join(data, "dev.en"), long+"\ntwo cats\n")

	cfg := config.DefaultConfig().Data
	cfg.DataFolder = dir
	src, trg, err := newFields("")
	if err != nil {
		t.Fatal(err)
	}
	trainData, devData, err := loadCorpus(cfg, src, trg)
	if err != nil {
		t.Fatal(err)
	}
	if len(trainData.Examples) != 1 || len(devData.Examples) != 1 {
		t.Fatalf("got %d train and %d dev examples, want 1 and 1", len(trainData.Examples), len(devData.Examples))
	}
	if got := devData.Examples[0].Trg; len(got) != 2 {
		t.Errorf("dev kept %q, want the short pair", got)
	}

	// nothing survives the filter
	cfg.MaxTrgLen = 1
	if _, _, err := loadCorpus(cfg, src, trg); !errors.Is(err, dataset.ErrEmptyDataset) {
		t.Errorf("got %v, want ErrEmptyDataset", err)
	}
}
