package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ShayCichocki/articlebench/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadInputs_JSONL(t *testing.T) {
	path := writeFile(t, "eval_inputs.jsonl", `{"request": "Camping in winter", "instructions": "Mention tents"}

{"request": "Hiking boots", "instructions": ""}
`)

	got, err := ReadInputs(path)
	if err != nil {
		t.Fatalf("ReadInputs failed: %v", err)
	}

	want := []models.Input{
		{Request: "Camping in winter", Instructions: "Mention tents"},
		{Request: "Hiking boots"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadInputs mismatch (-want +got):\n%s", diff)
	}
}

func TestReadInputs_YAML(t *testing.T) {
	path := writeFile(t, "inputs.yaml", `
- request: Camping in winter
  instructions: Mention tents
- request: Hiking boots
`)

	got, err := ReadInputs(path)
	if err != nil {
		t.Fatalf("ReadInputs failed: %v", err)
	}
	if len(got) != 2 || got[1].Request != "Hiking boots" {
		t.Errorf("ReadInputs = %+v", got)
	}
}

func TestReadInputs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantSub string
		wantIs  error
	}{
		{"bad json names line", "a.jsonl", "{\"request\":\"ok\"}\n{oops\n", "a.jsonl:2", nil},
		{"missing request", "b.jsonl", "{\"instructions\":\"x\"}\n", "missing request", nil},
		{"empty", "c.jsonl", "\n\n", "", ErrEmpty},
		{"yaml missing request", "d.yaml", "- instructions: x\n", "row 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInputs(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestRecords_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "eval_data.jsonl")
	records := []models.RunRecord{
		{Query: `{"request":"a","instructions":""}`, Context: `{}`, Response: `"<b>article</b>"`},
		{Query: `{"request":"b","instructions":""}`, Context: `{"research":[1]}`, Response: `null`},
	}

	if err := WriteRecords(path, records); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), `<`) {
		t.Errorf("expected HTML to be left unescaped, got %s", data)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("expected 2 lines, got %d", n)
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeJSONL(&buf, []any{map[string]int{"a": 1}, []int{2}})
	if err != nil {
		t.Fatalf("EncodeJSONL failed: %v", err)
	}
	if buf.String() != "{\"a\":1}\n[2]\n" {
		t.Errorf("EncodeJSONL = %q", buf.String())
	}
}

func TestWatch_FiresOnWrite(t *testing.T) {
	path := writeFile(t, "eval_data.jsonl", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() {
			calls.Add(1)
			fired <- struct{}{}
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watch callback never fired")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
	if calls.Load() < 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}
