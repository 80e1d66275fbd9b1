package gen

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testEnv(t *testing.T) *Environment {
	t.Helper()
	dir := t.TempDir()
	return &Environment{ProjectRoot: dir, ArtifactsDir: dir}
}

func TestGenerate_PassesRequestOnStdin(t *testing.T) {
	svc := &CommandService{
		// Echo the request back; the stage name proves stdin round-tripped.
		Command: `cat`,
		Env:     testEnv(t),
	}
	req := &Request{Kind: KindStage, Stage: "world"}
	out, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	var got Request
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got.Stage != "world" || got.Kind != KindStage {
		t.Fatalf("round-tripped request = %+v", got)
	}
}

func TestGenerate_NonZeroExit(t *testing.T) {
	svc := &CommandService{
		Command: `echo "generator blew up" >&2; exit 3`,
		Env:     testEnv(t),
	}
	_, err := svc.Generate(context.Background(), &Request{Kind: KindStage, Stage: "world"})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "exited 3") {
		t.Fatalf("error = %v, want exit code", err)
	}
	if !strings.Contains(err.Error(), "generator blew up") {
		t.Fatalf("error = %v, want stderr excerpt", err)
	}
}

func TestGenerate_InvalidJSONOutput(t *testing.T) {
	svc := &CommandService{
		Command: `echo "not json at all"`,
		Env:     testEnv(t),
	}
	_, err := svc.Generate(context.Background(), &Request{Kind: KindStage, Stage: "theme"})
	if err == nil {
		t.Fatal("expected error for invalid JSON output")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Fatalf("error = %v", err)
	}
}

func TestGenerate_EnvironmentExposed(t *testing.T) {
	svc := &CommandService{
		Command: `printf '{"kind":"%s","stage":"%s","chapter":%s,"scene":%s}' "$LOOM_KIND" "$LOOM_STAGE" "$LOOM_CHAPTER" "$LOOM_SCENE"`,
		Env:     testEnv(t),
	}
	req := &Request{Kind: KindScene, Stage: "chapters", Chapter: 3, Scene: 2}
	out, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Kind    string `json:"kind"`
		Stage   string `json:"stage"`
		Chapter int    `json:"chapter"`
		Scene   int    `json:"scene"`
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != KindScene || got.Chapter != 3 || got.Scene != 2 {
		t.Fatalf("child env = %+v", got)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	svc := &CommandService{
		Command: `sleep 10`,
		Timeout: 50 * time.Millisecond,
		Env:     testEnv(t),
	}
	_, err := svc.Generate(context.Background(), &Request{Kind: KindStage, Stage: "world"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestReview_DecodesReport(t *testing.T) {
	svc := &CommandService{
		Command:       `exit 1`,
		ReviewCommand: `printf '{"score":88,"summary":"clean","issues":[]}'`,
		Env:           testEnv(t),
	}
	report, err := svc.Review(context.Background(), &ReviewRequest{Chapter: 4})
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 88 {
		t.Fatalf("score = %d", report.Score)
	}
	// Chapter number defaults from the request when the reviewer omits it.
	if report.ChapterNumber != 4 {
		t.Fatalf("chapter = %d", report.ChapterNumber)
	}
}

func TestReview_MalformedReport(t *testing.T) {
	svc := &CommandService{
		ReviewCommand: `printf '[1,2,3]'`,
		Env:           testEnv(t),
	}
	if _, err := svc.Review(context.Background(), &ReviewRequest{Chapter: 1}); err == nil {
		t.Fatal("expected decode error for non-report JSON")
	}
}

func TestExpandVars(t *testing.T) {
	vars := map[string]string{"ARTIFACTS_DIR": "/tmp/a", "MODEL": "fast"}
	got := ExpandVars("gen --dir $ARTIFACTS_DIR --model ${MODEL}", vars)
	want := "gen --dir /tmp/a --model fast"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildEnv_CustomVars(t *testing.T) {
	env := &Environment{ProjectRoot: "/p", ArtifactsDir: "/a", CustomVars: map[string]string{"MODEL": "fast"}}
	got := BuildEnv(env, &Request{Kind: KindPlan, Stage: "chapters", Chapter: 2})
	var found, foundKind bool
	for _, kv := range got {
		if kv == "LOOM_MODEL=fast" {
			found = true
		}
		if kv == "LOOM_KIND="+KindPlan {
			foundKind = true
		}
	}
	if !found {
		t.Fatal("custom var missing from child env")
	}
	if !foundKind {
		t.Fatal("request kind missing from child env")
	}
}
