package tyco_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tyco"
	"github.com/vk/tyco/internal/diag"
)

func load(t *testing.T, src string, opts ...tyco.Option) *tyco.Context {
	t.Helper()
	ctx, err := tyco.LoadString(context.Background(), src, opts...)
	require.NoError(t, err)
	return ctx
}

func loadErr(t *testing.T, src string, opts ...tyco.Option) *diag.Diagnostic {
	t.Helper()
	_, err := tyco.LoadString(context.Background(), src, opts...)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.True(t, errors.As(err, &d), "load errors are diagnostics, got %T", err)
	return d
}

func TestLoad_TypedGlobals(t *testing.T) {
	t.Parallel()

	src := `str region: eu-west-1
int port: 5432
float ratio: 0.75
bool debug: true
date launched: 2024-01-15
time backup_at: 03:30:00
datetime deployed: 2024-01-15 14:30:00
timedelta timeout: 1h30m
`
	ctx := load(t, src)

	globals := ctx.Globals()
	require.Len(t, globals, 8)
	names := make([]string, len(globals))
	for i, g := range globals {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"region", "port", "ratio", "debug", "launched", "backup_at", "deployed", "timeout"},
		names, "globals keep declaration order")

	region, _ := ctx.Global("region")
	assert.Equal(t, "eu-west-1", region)
	port, _ := ctx.Global("port")
	assert.Equal(t, int64(5432), port)
	ratio, _ := ctx.Global("ratio")
	assert.Equal(t, 0.75, ratio)
	debug, _ := ctx.Global("debug")
	assert.Equal(t, true, debug)
	launched, _ := ctx.Global("launched")
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), launched)
	timeout, _ := ctx.Global("timeout")
	assert.Equal(t, 90*time.Minute, timeout)
}

func TestLoad_TimeShapedWordStaysStringWhenDeclaredStr(t *testing.T) {
	t.Parallel()

	ctx := load(t, "str start_time: 14:30:00\n")

	v, ok := ctx.Global("start_time")
	require.True(t, ok)
	assert.Equal(t, "14:30:00", v, "the declared type decides how a word is read")
}

func TestLoad_IntGlobalRadixes(t *testing.T) {
	t.Parallel()

	ctx := load(t, "int a: 0x1A\nint b: 0o17\nint c: 0b101\n")

	a, _ := ctx.Global("a")
	b, _ := ctx.Global("b")
	c, _ := ctx.Global("c")
	assert.Equal(t, int64(26), a)
	assert.Equal(t, int64(15), b)
	assert.Equal(t, int64(5), c)
}

func TestLoad_StructRowsAndDefaults(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port: 8080
 ?str note:

 - alpha
 - beta, 9090
 - gamma, note: spare
`
	ctx := load(t, src)

	servers := ctx.Instances("Server")
	require.Len(t, servers, 3)

	port, _ := servers[0].Field("port")
	assert.Equal(t, int64(8080), port, "omitted field takes the declared default")
	note, _ := servers[0].Field("note")
	assert.Nil(t, note, "omitted nullable field without default is absent")

	port, _ = servers[1].Field("port")
	assert.Equal(t, int64(9090), port)

	name, _ := servers[2].Field("name")
	assert.Equal(t, "gamma", name)
	note, _ = servers[2].Field("note")
	assert.Equal(t, "spare", note)
}

func TestLoad_NamedEntryOverridesPosition(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port: 8080

 - alpha, port: 9999
`
	ctx := load(t, src)

	inst := ctx.Instances("Server")[0]
	port, _ := inst.Field("port")
	assert.Equal(t, int64(9999), port)
}

func TestLoad_DefaultAssignmentOverlay(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port: 8080

 - a
 port: 9090
 - b
 port:
 - c, port: 1
`
	ctx := load(t, src)

	servers := ctx.Instances("Server")
	p0, _ := servers[0].Field("port")
	p1, _ := servers[1].Field("port")
	p2, _ := servers[2].Field("port")
	assert.Equal(t, int64(8080), p0, "before the assignment the declared default applies")
	assert.Equal(t, int64(9090), p1, "the assignment overrides the declared default")
	assert.Equal(t, int64(1), p2, "explicit values still win")
}

func TestLoad_ClearedDefaultMakesFieldRequired(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port: 8080

 port:
 - a
`
	d := loadErr(t, src)

	assert.Equal(t, diag.MissingFieldError, d.Kind)
	assert.Contains(t, d.Message, "'port'")
	assert.Contains(t, d.Message, "value is required and no default is defined")
}

func TestLoad_MissingRequiredField(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port:

 - alpha
`
	d := loadErr(t, src)

	assert.Equal(t, diag.MissingFieldError, d.Kind)
	assert.Equal(t, 5, d.Subject.Start.Line)
}

func TestLoad_TypeMismatches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want string
	}{
		{"bad int", "int x: abc\n", "'abc' is not a valid integer literal"},
		{"float for int", "int x: 1.5\n", "'1.5' is not a valid integer literal"},
		{"bad bool", "bool x: yes\n", "boolean fields must be either 'true' or 'false'"},
		{"quoted int", `int x: "80"` + "\n", "quoted string is not a valid int literal"},
		{"scalar for array", "str[] x: solo\n", "is an array, but a single value was provided"},
		{"array for scalar", "str x: [a]\n", "does not indicate an array"},
		{"bad date", "date x: 2024-13-40\n", "is not a valid ISO-8601 date"},
		{"unknown type", "quux x: 1\n", "invalid type 'quux'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := loadErr(t, tc.src)
			require.Equal(t, diag.TypeError, d.Kind)
			assert.Contains(t, d.Message, tc.want)
		})
	}
}

func TestLoad_NullHandling(t *testing.T) {
	t.Parallel()

	ctx := load(t, "?int retries: null\nstr word: null\n")

	retries, ok := ctx.Global("retries")
	require.True(t, ok)
	assert.Nil(t, retries)

	word, _ := ctx.Global("word")
	assert.Equal(t, "null", word, "null is only special for nullable fields")
}

func TestLoad_CrossFileSchemaAndRows(t *testing.T) {
	t.Parallel()

	schema := `Server:
 *str name:
 int port: 8080
`
	rows := `Server:
 - alpha
 - beta, 9090
`
	ctx, err := tyco.Load(context.Background(), []tyco.File{
		{Path: "rows.tyco", Text: rows},
		{Path: "schema.tyco", Text: schema},
	})
	require.NoError(t, err)

	servers := ctx.Instances("Server")
	require.Len(t, servers, 2, "rows may use a schema declared in a later file")
	port, _ := servers[0].Field("port")
	assert.Equal(t, int64(8080), port)
}

func TestLoad_DefaultAssignmentIsFileScoped(t *testing.T) {
	t.Parallel()

	fileA := `Server:
 *str name:
 int port: 8080

 port: 9090
 - a
`
	fileB := `Server:
 - b
`
	ctx, err := tyco.Load(context.Background(), []tyco.File{
		{Path: "a.tyco", Text: fileA},
		{Path: "b.tyco", Text: fileB},
	})
	require.NoError(t, err)

	servers := ctx.Instances("Server")
	pa, _ := servers[0].Field("port")
	pb, _ := servers[1].Field("port")
	assert.Equal(t, int64(9090), pa)
	assert.Equal(t, int64(8080), pb, "an assignment in one file does not leak into another")
}

func TestLoad_StructRedefinitionFails(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:

Server:
 int port:
`
	d := loadErr(t, src)

	assert.Equal(t, diag.ParseError, d.Kind)
	assert.Contains(t, d.Message, "cannot add schema attributes after initial construction")
	require.NotNil(t, d.Related, "the first definition is referenced")
	assert.Equal(t, 1, d.Related.Start.Line)
}

func TestLoad_GlobalRedefinition(t *testing.T) {
	t.Parallel()

	t.Run("same file always fails", func(t *testing.T) {
		d := loadErr(t, "str x: a\nstr x: b\n")
		assert.Contains(t, d.Message, "global attribute 'x' is defined more than once")
	})

	t.Run("across files last write wins", func(t *testing.T) {
		ctx, err := tyco.Load(context.Background(), []tyco.File{
			{Path: "a.tyco", Text: "str x: a\n"},
			{Path: "b.tyco", Text: "str x: b\n"},
		})
		require.NoError(t, err)
		v, _ := ctx.Global("x")
		assert.Equal(t, "b", v)
	})

	t.Run("across files strict mode fails", func(t *testing.T) {
		_, err := tyco.Load(context.Background(), []tyco.File{
			{Path: "a.tyco", Text: "str x: a\n"},
			{Path: "b.tyco", Text: "str x: b\n"},
		}, tyco.StrictGlobals())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "defined more than once")
	})
}

func TestLoad_References(t *testing.T) {
	t.Parallel()

	src := `Database:
 *str name:
 int port: 5432

 - primary
 - replica, 5433

Service:
 *str name:
 Database db:

 - api, Database(replica)
`
	ctx := load(t, src)

	svc := ctx.Instances("Service")[0]
	db, ok := svc.Field("db")
	require.True(t, ok)
	target, ok := db.(*tyco.Instance)
	require.True(t, ok, "struct fields resolve to instances")
	name, _ := target.Field("name")
	assert.Equal(t, "replica", name)
	port, _ := target.Field("port")
	assert.Equal(t, int64(5433), port)
}

func TestLoad_ReferenceKeyMatchesByTypedValue(t *testing.T) {
	t.Parallel()

	src := `Port:
 *int number:
 str proto: tcp

 - 10

Rule:
 *str name:
 Port port:

 - allow, Port(0x0A)
`
	ctx := load(t, src)

	rule := ctx.Instances("Rule")[0]
	port, _ := rule.Field("port")
	num, _ := port.(*tyco.Instance).Field("number")
	assert.Equal(t, int64(10), num, "0x0A and 10 are the same key")
}

func TestLoad_ForwardAndCrossFileReferences(t *testing.T) {
	t.Parallel()

	fileA := `Service:
 *str name:
 Database db:

 - api, Database(primary)
`
	fileB := `Database:
 *str name:

 - primary
`
	ctx, err := tyco.Load(context.Background(), []tyco.File{
		{Path: "a.tyco", Text: fileA},
		{Path: "b.tyco", Text: fileB},
	})
	require.NoError(t, err)

	svc := ctx.Instances("Service")[0]
	db, _ := svc.Field("db")
	require.NotNil(t, db)
}

func TestLoad_UnresolvedReference(t *testing.T) {
	t.Parallel()

	src := `Database:
 *str name:

 - primary

Service:
 *str name:
 Database db:

 - api, Database(missing)
`
	d := loadErr(t, src)

	assert.Equal(t, diag.UnresolvedReferenceError, d.Kind)
	assert.Contains(t, d.Message, "Database(missing) is referenced, but instance can not be found")
	assert.Equal(t, 10, d.Subject.Start.Line)
}

func TestLoad_DuplicateKey(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:

 - alpha
 - alpha
`
	d := loadErr(t, src)

	assert.Equal(t, diag.DuplicateKeyError, d.Kind)
	assert.Contains(t, d.Message, "Server with primary key (alpha) already exists")
	assert.Equal(t, 5, d.Subject.Start.Line)
	require.NotNil(t, d.Related)
	assert.Equal(t, 4, d.Related.Start.Line)
}

func TestLoad_CompositeKeysAndLookup(t *testing.T) {
	t.Parallel()

	src := `Endpoint:
 *str host:
 *int port:
 str proto: https

 - api.example.com, 443
 - api.example.com, 80, proto: http
`
	ctx := load(t, src)

	inst, ok := ctx.Lookup("Endpoint", "api.example.com", 80)
	require.True(t, ok)
	proto, _ := inst.Field("proto")
	assert.Equal(t, "http", proto)

	_, ok = ctx.Lookup("Endpoint", "api.example.com", 8080)
	assert.False(t, ok)

	_, ok = ctx.Lookup("Endpoint", "api.example.com")
	assert.False(t, ok, "arity must match the key")
}

func TestLoad_InlineInstances(t *testing.T) {
	t.Parallel()

	src := `Point:
 int x:
 int y:

Shape:
 *str name:
 Point origin:

 - box, Point(3, 4)
`
	ctx := load(t, src)

	shape := ctx.Instances("Shape")[0]
	origin, _ := shape.Field("origin")
	pt, ok := origin.(*tyco.Instance)
	require.True(t, ok)
	x, _ := pt.Field("x")
	y, _ := pt.Field("y")
	assert.Equal(t, int64(3), x)
	assert.Equal(t, int64(4), y)
	assert.Equal(t, -1, pt.Ordinal(), "inline instances are not indexed")
}

func TestLoad_StructTypedGlobal(t *testing.T) {
	t.Parallel()

	src := `Person:
 *str name:
 int age: 0

 - Alice, 30

Person admin: Person(Alice)
`
	ctx := load(t, src)

	admin, ok := ctx.Global("admin")
	require.True(t, ok)
	inst, ok := admin.(*tyco.Instance)
	require.True(t, ok)
	age, _ := inst.Field("age")
	assert.Equal(t, int64(30), age)
}

func TestLoad_ArrayFields(t *testing.T) {
	t.Parallel()

	src := `Cluster:
 *str name:
 str[] hosts:
 int[] weights: [1, 2]

 - main, [a, b, c]
`
	ctx := load(t, src)

	cluster := ctx.Instances("Cluster")[0]
	hosts, _ := cluster.Field("hosts")
	assert.Equal(t, []any{"a", "b", "c"}, hosts)
	weights, _ := cluster.Field("weights")
	assert.Equal(t, []any{int64(1), int64(2)}, weights, "array defaults apply per row")
}

func TestLoad_ArrayOfReferences(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:

 - a
 - b

Pool:
 *str name:
 Server[] members:

 - web, [Server(a), Server(b)]
`
	ctx := load(t, src)

	pool := ctx.Instances("Pool")[0]
	members, _ := pool.Field("members")
	list, ok := members.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	nameB, _ := list[1].(*tyco.Instance).Field("name")
	assert.Equal(t, "b", nameB)
}

func TestLoad_ValidatorHooks(t *testing.T) {
	t.Parallel()

	src := `Server:
 *str name:
 int port: 8080

 - alpha, 70000
`
	portCheck := func(inst *tyco.Instance) error {
		port, _ := inst.Field("port")
		if p := port.(int64); p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
		return nil
	}

	d := loadErr(t, src, tyco.WithValidator("Server", portCheck))
	assert.Equal(t, diag.ValidatorRejectedError, d.Kind)
	assert.Contains(t, d.Message, "port 70000 out of range")

	ok := `Server:
 *str name:
 int port: 8080

 - alpha
`
	ctx := load(t, ok, tyco.WithValidator("Server", portCheck))
	require.Len(t, ctx.Instances("Server"), 1)
}

func TestLoad_DiagnosticRendersCaret(t *testing.T) {
	t.Parallel()

	_, err := tyco.LoadString(context.Background(), "int x: abc\n")
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, `File "<string>", line 1, column 8:`)
	assert.Contains(t, msg, "int x: abc")
	assert.Contains(t, msg, "       ^")
	assert.Contains(t, msg, "TypeError:")
}

func TestLoad_EmptyInput(t *testing.T) {
	t.Parallel()

	ctx, err := tyco.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ctx.Globals())
	assert.Empty(t, ctx.StructNames())
}
