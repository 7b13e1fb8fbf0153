package tyco_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tyco"
	"github.com/vk/tyco/internal/diag"
)

func TestExport_Tree(t *testing.T) {
	t.Parallel()

	src := `str region: eu-west-1
int retries: 3

Server:
 *str name:
 int port: 8080
 ?str note:

 - alpha
 - beta, 9090, note: spare
`
	ctx := load(t, src)

	tree, err := ctx.Export()
	require.NoError(t, err)

	want := map[string]any{
		"region":  "eu-west-1",
		"retries": int64(3),
		"Server": []any{
			map[string]any{"name": "alpha", "port": int64(8080), "note": nil},
			map[string]any{"name": "beta", "port": int64(9090), "note": "spare"},
		},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("export tree mismatch (-want +got):\n%s", diff)
	}
}

func TestExport_TemporalFormats(t *testing.T) {
	t.Parallel()

	src := `date d: 2024-01-15
time t: 03:30:00
datetime naive: 2024-01-15 14:30:00
datetime zoned: 2024-01-15T14:30:00+02:00
timedelta span: 1h30m
`
	ctx := load(t, src)

	tree, err := ctx.Export()
	require.NoError(t, err)

	assert.Equal(t, "2024-01-15", tree["d"])
	assert.Equal(t, "03:30:00", tree["t"])
	assert.Equal(t, "2024-01-15T14:30:00Z", tree["naive"], "naive datetimes export as UTC")
	assert.Equal(t, "2024-01-15T14:30:00+02:00", tree["zoned"])
	assert.Equal(t, "1h30m0s", tree["span"])
}

func TestExport_ReferencesEmbedTargetTree(t *testing.T) {
	t.Parallel()

	src := `Database:
 *str name:
 int port: 5432

 - primary

Service:
 *str name:
 Database db:

 - api, Database(primary)
`
	ctx := load(t, src)

	tree, err := ctx.Export()
	require.NoError(t, err)

	services := tree["Service"].([]any)
	svc := services[0].(map[string]any)
	db := svc["db"].(map[string]any)
	assert.Equal(t, "primary", db["name"])
	assert.Equal(t, int64(5432), db["port"])
}

func TestExport_InlineOnlyStructsAreNotTopLevel(t *testing.T) {
	t.Parallel()

	src := `Point:
 int x:
 int y:

Shape:
 *str name:
 Point origin:

 - box, Point(1, 2)
`
	ctx := load(t, src)

	tree, err := ctx.Export()
	require.NoError(t, err)

	_, present := tree["Point"]
	assert.False(t, present, "structs without primary keys only appear where inlined")
	shape := tree["Shape"].([]any)[0].(map[string]any)
	origin := shape["origin"].(map[string]any)
	assert.Equal(t, int64(1), origin["x"])
}

func TestExport_CyclicReference(t *testing.T) {
	t.Parallel()

	src := `A:
 *str name:
 ?B partner:

B:
 *str name:
 ?A partner:

A:
 - a1, B(b1)

B:
 - b1, A(a1)
`
	ctx := load(t, src)

	// The context itself loads fine; only a full embedding export trips
	// over the cycle.
	a := ctx.Instances("A")[0]
	partner, _ := a.Field("partner")
	require.NotNil(t, partner)

	_, err := ctx.Export()
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.CyclicExportError, d.Kind)
	assert.Contains(t, d.Message, "cyclic reference detected")
}

func TestExportJSON_DeterministicBytes(t *testing.T) {
	t.Parallel()

	src := `str b: two
str a: one

Server:
 *str name:
 int port: 8080

 - alpha
`
	first := load(t, src)
	second := load(t, src)

	j1, err := first.ExportJSON(false)
	require.NoError(t, err)
	j2, err := second.ExportJSON(false)
	require.NoError(t, err)
	assert.Equal(t, string(j1), string(j2), "repeated loads of the same input serialize identically")
}

func TestExportJSON_Pretty(t *testing.T) {
	t.Parallel()

	ctx := load(t, "str a: one\n")

	out, err := ctx.ExportJSON(true)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"one\"\n}", string(out))
}

func TestExport_GlobalArraysAndNullables(t *testing.T) {
	t.Parallel()

	src := `str[] hosts: [a, b]
?int retries: null
`
	ctx := load(t, src)

	tree, err := ctx.Export()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, tree["hosts"])
	v, present := tree["retries"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestLoad_IsDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	files := []tyco.File{
		{Path: "b.tyco", Text: "str b: two\nServer:\n - beta\n"},
		{Path: "a.tyco", Text: "Server:\n *str name:\n\n - alpha\n"},
	}
	c1, err := tyco.Load(context.Background(), files)
	require.NoError(t, err)
	c2, err := tyco.Load(context.Background(), files)
	require.NoError(t, err)

	t1, err := c1.Export()
	require.NoError(t, err)
	t2, err := c2.Export()
	require.NoError(t, err)
	if diff := cmp.Diff(t1, t2); diff != "" {
		t.Fatalf("two loads of the same file set diverged (-first +second):\n%s", diff)
	}

	servers := c1.Instances("Server")
	require.Len(t, servers, 2)
	n0, _ := servers[0].Field("name")
	assert.Equal(t, "beta", n0, "instance order follows file list order")
}
