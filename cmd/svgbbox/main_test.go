package main

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/benoitkugler/svgbbox/svgdom"
	"github.com/benoitkugler/svgbbox/svgraster"
	"github.com/benoitkugler/svgbbox/visualbbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("renderer crashed")

type brokenBackend struct{ closed int }

func (b *brokenBackend) Rasterize(context.Context, []byte, int, int) (*image.RGBA, error) {
	return nil, errBroken
}

func (b *brokenBackend) DrawingBounds(context.Context, []byte) (visualbbox.BBox, bool, error) {
	return visualbbox.BBox{}, false, errBroken
}

func (b *brokenBackend) Close() error {
	b.closed++
	return nil
}

const drawing = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
	<rect id="a" x="10" y="10" width="20" height="20"/>
	<rect id="b" x="50" y="50" width="20" height="20"/>
</svg>`

var fast = visualbbox.Options{CoarseFactor: 1, FineFactor: 4}

func TestMeasureClosesBackend(t *testing.T) {
	doc, err := svgdom.ParseString(drawing)
	require.NoError(t, err)

	backend := &brokenBackend{}
	_, err = measure(context.Background(), visualbbox.New(backend), backend, doc, nil, fast, false, false, false)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 1, backend.closed)

	_, err = measure(context.Background(), visualbbox.New(backend), backend, doc, nil, fast, false, false, true)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 2, backend.closed)
}

func TestRun(t *testing.T) {
	doc, err := svgdom.ParseString(drawing)
	require.NoError(t, err)
	engine := visualbbox.New(svgraster.New(svgraster.Config{}))

	res, err := measure(context.Background(), engine, nil, doc, []string{"a", "b"}, fast, true, false, false)
	require.NoError(t, err)
	union := res.(*visualbbox.UnionResult)
	require.NotNil(t, union.Union)
	assert.InDelta(t, 10, union.Union.X, 1)
	assert.InDelta(t, 60, union.Union.Width, 1)
	assert.Len(t, union.Boxes, 2)

	res, err = measure(context.Background(), engine, nil, doc, []string{"b"}, fast, false, false, false)
	require.NoError(t, err)
	elements := res.([]elementResult)
	require.Len(t, elements, 1)
	assert.Equal(t, "b", elements[0].ID)
	require.NotNil(t, elements[0].BBox)
	assert.InDelta(t, 50, elements[0].BBox.X, 1)
}
