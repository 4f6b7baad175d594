package resolver

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/tendant/ecosort-api/internal/metrics"
	"github.com/tendant/ecosort-api/internal/models"
	"github.com/tendant/ecosort-api/internal/storage"
	"github.com/tendant/ecosort-api/pkg/recycling"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker starts in init and never exits
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeModel struct {
	text   string
	err    error
	prompt models.Prompt
	calls  int
}

func (f *fakeModel) Describe(ctx context.Context, p models.Prompt) (string, error) {
	f.calls++
	f.prompt = p
	return f.text, f.err
}

func (f *fakeModel) Name() string { return "fake:vision" }

const torontoDoc = "Blue bin: plastic bottles, cans.\nDepot: 1 Commissioners St, 311, Mon-Sat 7am-5pm."

func newDocs(t *testing.T) storage.DocumentReader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "toronto"+storage.DocumentSuffix), []byte(torontoDoc), 0o644))
	store, err := storage.NewFilesystemStore(dir)
	require.NoError(t, err)
	return store
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResolve_ReturnsModelTextUnmodified(t *testing.T) {
	model := &fakeModel{text: "  Plastic bottle → blue bin.\n"}
	r := New(newDocs(t), model, WithLogger(zaptest.NewLogger(t)), WithMetrics(metrics.New()))

	img := pngImage(t, 8, 8)
	got, err := r.Resolve(context.Background(), img, "toronto")
	require.NoError(t, err)
	assert.Equal(t, "  Plastic bottle → blue bin.\n", got)

	assert.Equal(t, 1, model.calls)
	assert.Equal(t, img, model.prompt.Image)
	assert.Equal(t, "image/png", model.prompt.MIMEType)
	assert.Contains(t, model.prompt.Text, torontoDoc)
	for _, ch := range recycling.DisposalChannels {
		assert.Contains(t, model.prompt.Text, ch)
	}
	assert.Contains(t, model.prompt.Text, "address, contact and hours")
}

func TestResolve_MissingDocument(t *testing.T) {
	model := &fakeModel{text: "unused"}
	r := New(newDocs(t), model)

	_, err := r.Resolve(context.Background(), []byte("img"), "atlantis")
	assert.True(t, errors.Is(err, recycling.ErrInstructionNotFound))
	assert.Equal(t, 0, model.calls)
}

func TestResolve_UpstreamFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("dial tcp: connection refused")}
	r := New(newDocs(t), model)

	_, err := r.Resolve(context.Background(), []byte("img"), "toronto")
	assert.True(t, errors.Is(err, recycling.ErrUpstream))
}

func TestResolve_EmptyAnswerIsUpstreamError(t *testing.T) {
	r := New(newDocs(t), &fakeModel{text: ""})

	_, err := r.Resolve(context.Background(), []byte("img"), "toronto")
	assert.True(t, errors.Is(err, recycling.ErrUpstream))
}

func TestResolve_DownscalesLargeImages(t *testing.T) {
	model := &fakeModel{text: "ok"}
	r := New(newDocs(t), model, WithImageMaxDim(16))

	_, err := r.Resolve(context.Background(), pngImage(t, 64, 32), "toronto")
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", model.prompt.MIMEType)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(model.prompt.Image))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 16, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
}

func TestPrepareImage_PassThrough(t *testing.T) {
	small := pngImage(t, 4, 4)
	data, mime, resized := prepareImage(small, 16)
	assert.False(t, resized)
	assert.Equal(t, small, data)
	assert.Equal(t, "image/png", mime)

	garbage := []byte("definitely not an image")
	data, mime, resized = prepareImage(garbage, 16)
	assert.False(t, resized)
	assert.Equal(t, garbage, data)
	assert.Equal(t, "image/jpeg", mime)

	data, _, resized = prepareImage(pngImage(t, 64, 64), 0)
	assert.False(t, resized)
	assert.NotEmpty(t, data)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("peel", "  Green bin accepts food scraps.  ")
	assert.True(t, strings.HasPrefix(p, "Identify the one major object"))
	assert.Contains(t, p, "instructions for peel")
	assert.Contains(t, p, "<instructions>\nGreen bin accepts food scraps.\n</instructions>")
}
