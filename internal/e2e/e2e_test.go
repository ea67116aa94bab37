package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/mark3labs/oapisync/internal/cli"
)

// Swagger 2.0 contract with one tagged operation per group.
const swaggerSpec = `swagger: '2.0'
info:
  title: E2E Blog
  version: '1.0.0'
basePath: /
securityDefinitions:
  apiKey:
    type: apiKey
    in: header
    name: X-API-Key
paths:
  /users/{id}:
    get:
      operationId: getUserById
      tags: [users]
      produces: [application/json]
      parameters:
        - name: id
          in: path
          required: true
          type: string
        - name: fields
          in: query
          type: array
          items: {type: string}
          collectionFormat: csv
      responses:
        '200':
          description: ok
          schema: {$ref: '#/definitions/User'}
  /posts:
    post:
      tags: [posts]
      consumes: [application/json]
      produces: [application/json]
      security:
        - apiKey: []
      parameters:
        - name: body
          in: body
          required: true
          schema: {$ref: '#/definitions/NewPost'}
      responses:
        '201':
          description: created
definitions:
  User:
    type: object
    required: [id]
    properties:
      id: {type: string}
      email: {type: string, x-nullable: true}
      created_at: {type: string, format: date-time}
  NewPost:
    type: object
    required: [title]
    properties:
      title: {type: string}
      body: {type: string}
`

func writeProject(t *testing.T) (specPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	specPath = filepath.Join(t.TempDir(), "swagger.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(swaggerSpec), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/blog\n\ngo 1.22\n"), 0o644))
	return specPath, dir
}

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("cli execute %v: %v", args, err)
	}
}

func digestDir(t *testing.T, dir string) (files []string, sum string) {
	t.Helper()
	var list []string
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(dir, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		list = append(list, rel)
		_, _ = h.Write([]byte(rel))
		b, rerr := os.ReadFile(path)
		if rerr != nil {
			return rerr
		}
		_, _ = h.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	sort.Strings(list)
	return list, hex.EncodeToString(h.Sum(nil))
}

func read(t *testing.T, dir, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestE2E_Echo_IdempotentScaffold(t *testing.T) {
	t.Parallel()
	specPath, dir := writeProject(t)
	args := []string{"generate", "--input", specPath, "--out", dir, "--tests"}

	runCLI(t, args...)
	files1, sum1 := digestDir(t, dir)
	assert.Equal(t, []string{
		"go.mod",
		"handlers/posts.go", "handlers/posts_test.go",
		"handlers/users.go", "handlers/users_test.go",
		"models/models.go",
		"routes/routes.go",
	}, files1)

	runCLI(t, args...)
	files2, sum2 := digestDir(t, dir)
	assert.Equal(t, files1, files2)
	assert.Equal(t, sum1, sum2, "second run must not change anything")

	routes := read(t, dir, "routes/routes.go")
	assert.Equal(t, 1, strings.Count(routes, `e.GET("/users/:id", handlers.GetUserByID)`))
	assert.Equal(t, 1, strings.Count(routes, `e.POST("/posts", handlers.PostPosts)`))

	users := read(t, dir, "handlers/users.go")
	assert.Contains(t, users, "func GetUserByID(c echo.Context) error {")
	assert.Contains(t, users, `fields := c.QueryParam("fields")`)

	posts := read(t, dir, "handlers/posts.go")
	assert.Contains(t, posts, "var body models.NewPost")
	assert.Contains(t, posts, "func postPostsCredential(r *http.Request)")
	assert.Contains(t, posts, `r.Header.Get("X-API-Key")`)

	models := read(t, dir, "models/models.go")
	assert.Contains(t, models, "type User struct {")
	assert.Regexp(t, `CreatedAt\s+\*time\.Time`, models)

	if os.Getenv("OAPISYNC_E2E_ONLINE") == "1" && haveCmd("go") {
		if err := runCmdWithTimeout(dir, 3*time.Minute, "go", "mod", "tidy"); err != nil {
			t.Skipf("go mod tidy skipped (likely offline): %v", err)
		}
		if err := runCmdWithTimeout(dir, 3*time.Minute, "go", "vet", "./..."); err != nil {
			t.Fatalf("generated project does not vet: %v", err)
		}
	}
}

func TestE2E_Chi_PreservesHandWrittenCode(t *testing.T) {
	t.Parallel()
	specPath, dir := writeProject(t)
	args := []string{"generate", "--input", specPath, "--out", dir, "--framework", "chi", "--include-tags", "users"}
	runCLI(t, args...)

	path := filepath.Join(dir, "handlers", "users.go")
	custom := read(t, dir, "handlers/users.go") + "\n// lookupUser is hand-written.\nfunc lookupUser(id string) string { return id }\n"
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	// Widening the filter adds the posts group without touching users.
	runCLI(t, "generate", "--input", specPath, "--out", dir, "--framework", "chi")
	assert.Equal(t, custom, read(t, dir, "handlers/users.go"))

	routes := read(t, dir, "routes/routes.go")
	assert.Equal(t, 1, strings.Count(routes, `r.Get("/users/{id}", handlers.GetUserByID)`))
	assert.Equal(t, 1, strings.Count(routes, `r.Post("/posts", handlers.PostPosts)`))
	// Existing registrations keep their place; new ones go last.
	assert.Less(t, strings.Index(routes, "GetUserByID"), strings.Index(routes, "PostPosts"))
}

func TestE2E_Deterministic(t *testing.T) {
	t.Parallel()
	specPath, dir1 := writeProject(t)
	_, dir2 := writeProject(t)

	runCLI(t, "generate", "--input", specPath, "--out", dir1, "--tests")
	runCLI(t, "generate", "--input", specPath, "--out", dir2, "--tests")

	files1, sum1 := digestDir(t, dir1)
	files2, sum2 := digestDir(t, dir2)
	assert.Equal(t, files1, files2)
	assert.Equal(t, sum1, sum2)
}

func haveCmd(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCmdWithTimeout(dir string, timeout time.Duration, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &execError{err: err, output: out.String()}
	}
	return nil
}

type execError struct {
	err    error
	output string
}

func (e *execError) Error() string { return e.err.Error() + ": " + e.output }
