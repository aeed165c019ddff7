package api

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestSourceUnmarshalYAMLLocal(t *testing.T) {
	var s Source
	if err := yaml.Unmarshal([]byte("path: ./src\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Local == nil || s.Local.Path != "./src" {
		t.Fatalf("got %+v", s)
	}
}

func TestSourceUnmarshalYAMLGit(t *testing.T) {
	var s Source
	if err := yaml.Unmarshal([]byte("git: https://example.com/repo.git\nref: main\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Git == nil || s.Git.Ref != "main" {
		t.Fatalf("got %+v", s)
	}
}

func TestSourceUnmarshalYAMLTar(t *testing.T) {
	var s Source
	if err := yaml.Unmarshal([]byte("tar: https://example.com/src.tar.gz\n"), &s); err != nil {
		t.Fatal(err)
	}
	if s.Tar == nil {
		t.Fatalf("got %+v", s)
	}
}

func TestSourceUnmarshalYAMLUnknown(t *testing.T) {
	var s Source
	if err := yaml.Unmarshal([]byte("subdir: foo\n"), &s); err == nil {
		t.Fatal("expected error for unrecognized source specifier")
	}
}

func TestValidateCollectionEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateCollection(dir); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestValidateCollectionOK(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateCollection(dir); err != nil {
		t.Fatal(err)
	}
}
