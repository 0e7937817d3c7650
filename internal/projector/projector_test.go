package projector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"record-presenter/internal/descriptor"
	"record-presenter/internal/diagnostic"
	"record-presenter/internal/record"
)

type fakeStore struct {
	ResidentStore

	mu        sync.Mutex
	relations map[string]record.Link
	fetches   map[string]int
	failing   map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		relations: map[string]record.Link{},
		fetches:   map[string]int{},
		failing:   map[string]error{},
	}
}

func relationKey(rec *record.Record, association string) string {
	return rec.Key().String() + "." + association
}

func (s *fakeStore) relate(rec *record.Record, association string, link record.Link) {
	s.relations[relationKey(rec, association)] = link
}

func (s *fakeStore) FetchAssociation(_ context.Context, rec *record.Record, association string) (record.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := relationKey(rec, association)
	s.fetches[k]++

	if err, ok := s.failing[k]; ok {
		return record.Link{}, err
	}

	return s.relations[k], nil
}

func (s *fakeStore) fetchCount(rec *record.Record, association string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetches[relationKey(rec, association)]
}

func (s *fakeStore) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.fetches {
		n += c
	}

	return n
}

// plans maps a type name to the request used for nested records of it.
type plans map[string]Request

func (p plans) planner() Planner {
	return PlannerFunc(func(rec *record.Record, mode descriptor.Mode) (Request, error) {
		req, ok := p[rec.Type]
		if !ok {
			return Request{}, fmt.Errorf("no plan for %s", rec.Type)
		}

		req.Mode = mode

		return req, nil
	})
}

func user(id int, uuid, name string) *record.Record {
	return record.New("user", id).Set("uuid", uuid).Set("name", name).Set("email", name+"@example.com")
}

func post(id int, uuid, title string, userID int) *record.Record {
	return record.New("post", id).Set("uuid", uuid).Set("title", title).Set("userId", userID)
}

var blogPlans = plans{
	"user": {Attributes: []string{"uuid", "name"}},
	"post": {
		Attributes:   []string{"uuid", "title", "authorUuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Renamed("user", "author")},
	},
}

func TestProjectPlainAttributes(t *testing.T) {
	rec := user(1, "u-1", "bill").Set("bio", nil)
	p := New(newFakeStore(), nil)

	res, err := p.Project(context.Background(), rec, Request{
		Attributes: []string{"name", "missing", "bio", "uuid"},
	}, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "bio", "uuid"}, res.Keys())
	assert.Equal(t, map[string]any{"name": "bill", "bio": nil, "uuid": "u-1"}, res.Map())
}

func TestProjectLoadsMissingAssociation(t *testing.T) {
	store := newFakeStore()
	author := user(7, "u-7", "ann")
	p1 := post(1, "p-1", "hello", 7)
	store.relate(p1, "user", record.One(author))

	req := blogPlans["post"]
	req.Policy = descriptor.Load()

	res, err := New(store, blogPlans.planner()).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	want := map[string]any{
		"uuid":       "p-1",
		"title":      "hello",
		"authorUuid": "u-7",
		"author":     map[string]any{"uuid": "u-7", "name": "ann"},
	}
	if diff := cmp.Diff(want, res.Map()); diff != "" {
		t.Errorf("projection mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"uuid", "title", "authorUuid", "author"}, res.Keys())
	assert.Equal(t, 1, store.fetchCount(p1, "user"), "key resolution and descent share one fetch")
	assert.NotContains(t, p1.Associations, "user", "records are never mutated")
}

func TestProjectUsesResidentAssociation(t *testing.T) {
	store := newFakeStore()
	p1 := post(1, "p-1", "hello", 7).Include("user", record.One(user(7, "u-7", "ann")))

	req := blogPlans["post"]
	req.Policy = descriptor.Load()

	res, err := New(store, blogPlans.planner()).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	v, _ := res.Get("authorUuid")
	assert.Equal(t, "u-7", v)
	assert.True(t, res.Has("author"))
	assert.Zero(t, store.totalFetches())
}

func TestProjectPrefersDirectKeyValue(t *testing.T) {
	store := newFakeStore()
	p1 := post(1, "p-1", "hello", 7).Set("authorUuid", "direct")

	req := Request{Attributes: []string{"authorUuid"}, Policy: descriptor.Load()}

	res, err := New(store, nil).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	v, _ := res.Get("authorUuid")
	assert.Equal(t, "direct", v)
	assert.Zero(t, store.totalFetches())
}

func TestProjectKeyAttributeWithoutRename(t *testing.T) {
	store := newFakeStore()
	c := record.New("comment", 3).Set("uuid", "c-3")
	store.relate(c, "user", record.One(user(9, "u-9", "joe")))

	req := Request{Attributes: []string{"uuid", "userUuid"}, Policy: descriptor.Load()}

	res, err := New(store, nil).Project(context.Background(), c, req, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"uuid": "c-3", "userUuid": "u-9"}, res.Map())
}

func TestProjectCustomPresentationKey(t *testing.T) {
	store := newFakeStore()
	c := record.New("comment", 3).Set("slug", "c-3")
	store.relate(c, "user", record.One(user(9, "u-9", "joe").Set("slug", "joe")))

	req := Request{
		Attributes:      []string{"slug", "userSlug", "userUuid"},
		PresentationKey: "slug",
		Policy:          descriptor.Load(),
	}

	res, err := New(store, nil).Project(context.Background(), c, req, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, []string{"slug", "userSlug"}, res.Keys(), "userUuid is a plain attribute the record lacks")
	v, _ := res.Get("userSlug")
	assert.Equal(t, "joe", v)
}

func TestProjectWarnPolicy(t *testing.T) {
	store := newFakeStore()
	sink := diagnostic.NewCollector()
	p1 := post(1, "p-1", "hello", 7)

	req := Request{
		Attributes:   []string{"uuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Renamed("user", "author")},
		Policy:       descriptor.Warn(),
	}

	res, err := New(store, blogPlans.planner(), WithSink(sink)).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	assert.False(t, res.Has("author"))
	assert.Equal(t, []string{"author association requested but user model was not included"}, sink.Messages())
	assert.Zero(t, store.totalFetches())
}

func TestProjectWarnPolicyKeyAttribute(t *testing.T) {
	sink := diagnostic.NewCollector()
	p1 := post(1, "p-1", "hello", 7)

	req := blogPlans["post"]
	req.Policy = descriptor.Warn()

	res, err := New(newFakeStore(), blogPlans.planner(), WithSink(sink)).
		Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, []string{"uuid", "title"}, res.Keys())
	assert.ElementsMatch(t, []string{
		"authorUuid attribute requested but user model was not included",
		"author association requested but user model was not included",
	}, sink.Messages())
}

func TestProjectDisabledPolicy(t *testing.T) {
	store := newFakeStore()
	sink := diagnostic.NewCollector()
	p1 := post(1, "p-1", "hello", 7)
	store.relate(p1, "user", record.One(user(7, "u-7", "ann")))

	for _, policy := range []descriptor.Policy{{}, descriptor.Disabled(), descriptor.PerType(map[string]descriptor.Action{
		"comment": descriptor.ActionLoad,
	})} {
		req := blogPlans["post"]
		req.Policy = policy

		res, err := New(store, blogPlans.planner(), WithSink(sink)).Project(context.Background(), p1, req, record.Path{})
		require.NoError(t, err)

		assert.Equal(t, []string{"uuid", "title"}, res.Keys(), "policy %s", policy)
	}

	assert.Empty(t, sink.Messages())
	assert.Zero(t, store.totalFetches())
}

func TestProjectPerTypePolicy(t *testing.T) {
	store := newFakeStore()
	p1 := post(1, "p-1", "hello", 7)
	store.relate(p1, "user", record.One(user(7, "u-7", "ann")))

	req := blogPlans["post"]
	req.Policy = descriptor.PerType(map[string]descriptor.Action{"post": descriptor.ActionLoad})

	res, err := New(store, blogPlans.planner()).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	assert.True(t, res.Has("author"))
}

func TestProjectNullAssociation(t *testing.T) {
	store := newFakeStore()
	sink := diagnostic.NewCollector()
	p1 := post(1, "p-1", "hello", 7).Include("user", record.One(nil))

	req := blogPlans["post"]
	req.Policy = descriptor.Warn()

	res, err := New(store, blogPlans.planner(), WithSink(sink)).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	assert.False(t, res.Has("author"))
	assert.Len(t, sink.Messages(), 2)
}

func TestProjectCollection(t *testing.T) {
	store := newFakeStore()
	u := user(1, "u-1", "bill")
	p1 := post(1, "p-1", "first", 1)
	p2 := post(2, "p-2", "second", 1)
	store.relate(u, "posts", record.Many(p1, p2))

	nested := plans{"post": {Attributes: []string{"uuid", "title"}}}
	req := Request{
		Attributes:   []string{"uuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")},
		Policy:       descriptor.Load(),
	}

	res, err := New(store, nested.planner()).Project(context.Background(), u, req, record.Path{})
	require.NoError(t, err)

	list, ok := res.List("posts")
	require.True(t, ok)
	require.Len(t, list, 2)

	assert.Equal(t, map[string]any{
		"uuid": "u-1",
		"posts": []any{
			map[string]any{"uuid": "p-1", "title": "first"},
			map[string]any{"uuid": "p-2", "title": "second"},
		},
	}, res.Map())
}

func TestProjectEmptyCollection(t *testing.T) {
	u := user(1, "u-1", "bill").Include("posts", record.Many())

	req := Request{Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")}}

	res, err := New(newFakeStore(), blogPlans.planner()).Project(context.Background(), u, req, record.Path{})
	require.NoError(t, err)

	list, ok := res.List("posts")
	require.True(t, ok)
	assert.Empty(t, list)
}

func TestProjectCycleBackEdgeOmitted(t *testing.T) {
	u := user(1, "u-1", "bill")
	p1 := post(1, "p-1", "first", 1).Include("user", record.One(u))
	p2 := record.New("post", 2).Set("uuid", "p-2").Set("title", "second").Include("user", record.One(u))
	u.Include("posts", record.Many(p1, p2))

	nested := plans{
		"user": {
			Attributes:   []string{"uuid"},
			Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")},
		},
		"post": {
			Attributes:   []string{"uuid"},
			Associations: []descriptor.AssociationSpec{descriptor.Renamed("user", "author")},
		},
	}

	req := nested["user"]
	req.Policy = descriptor.Load()

	res, err := New(newFakeStore(), nested.planner()).Project(context.Background(), u, req, record.Path{})
	require.NoError(t, err)

	// p1 is cut by its userId before descent, p2 by the path check.
	assert.Equal(t, map[string]any{
		"uuid": "u-1",
		"posts": []any{
			map[string]any{"uuid": "p-1"},
			map[string]any{"uuid": "p-2"},
		},
	}, res.Map())
}

func TestProjectCycleDropsCollectionMembers(t *testing.T) {
	u1 := user(1, "u-1", "bill")
	u2 := user(2, "u-2", "ann")
	u1.Include("friends", record.Many(u2, u1))

	nested := plans{"user": {
		Attributes:   []string{"uuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("friends")},
	}}

	res, err := New(newFakeStore(), nested.planner()).Project(context.Background(), u1, nested["user"], record.Path{})
	require.NoError(t, err)

	list, ok := res.List("friends")
	require.True(t, ok)
	require.Len(t, list, 1)

	v, _ := list[0].Get("uuid")
	assert.Equal(t, "u-2", v)
}

func TestProjectCousinsAreIndependent(t *testing.T) {
	shared := user(9, "u-9", "shared")
	p1 := post(1, "p-1", "first", 9).Include("user", record.One(shared))
	p2 := post(2, "p-2", "second", 9).Include("user", record.One(shared))
	team := record.New("team", 1).Set("uuid", "t-1").Include("posts", record.Many(p1, p2))

	req := Request{Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")}}

	res, err := New(newFakeStore(), blogPlans.planner()).Project(context.Background(), team, req, record.Path{})
	require.NoError(t, err)

	list, _ := res.List("posts")
	require.Len(t, list, 2)

	for _, p := range list {
		assert.True(t, p.Has("author"), "the same user under two sibling posts is not a cycle")
	}
}

func TestProjectRecordOnPath(t *testing.T) {
	u := user(1, "u-1", "bill")

	res, err := New(newFakeStore(), nil).Project(context.Background(), u, Request{}, record.NewPath(u.Key()))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = New(newFakeStore(), nil).Project(context.Background(), nil, Request{}, record.Path{})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProjectFetchFailureAborts(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("connection reset")
	u := user(1, "u-1", "bill")
	store.failing[relationKey(u, "posts")] = boom

	req := Request{
		Attributes:   []string{"uuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts"), descriptor.Assoc("team")},
		Policy:       descriptor.Load(),
	}

	res, err := New(store, blogPlans.planner()).Project(context.Background(), u, req, record.Path{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "user.posts")
	assert.Nil(t, res)
}

func TestProjectNestedPlanError(t *testing.T) {
	c := record.New("comment", 1).Include("team", record.One(record.New("team", 1)))
	req := Request{Associations: []descriptor.AssociationSpec{descriptor.Assoc("team")}}

	_, err := New(newFakeStore(), blogPlans.planner()).Project(context.Background(), c, req, record.Path{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plan for team")

	_, err = New(newFakeStore(), nil).Project(context.Background(), c, req, record.Path{})
	assert.ErrorIs(t, err, ErrNoPlanner)
}

func TestProjectPropagatesMode(t *testing.T) {
	var (
		mu    sync.Mutex
		modes []descriptor.Mode
	)

	planner := PlannerFunc(func(rec *record.Record, mode descriptor.Mode) (Request, error) {
		mu.Lock()
		modes = append(modes, mode)
		mu.Unlock()

		return Request{Attributes: []string{"uuid"}}, nil
	})

	p1 := post(1, "p-1", "a", 1).Include("user", record.One(user(1, "u-1", "bill")))
	req := Request{
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("user")},
		Mode:         descriptor.ModePrivate,
	}

	_, err := New(newFakeStore(), planner).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)
	assert.Equal(t, []descriptor.Mode{descriptor.ModePrivate}, modes)
}

func TestProjectIdempotent(t *testing.T) {
	store := newFakeStore()
	p1 := post(1, "p-1", "hello", 7)
	store.relate(p1, "user", record.One(user(7, "u-7", "ann")))

	req := blogPlans["post"]
	req.Policy = descriptor.Load()
	p := New(store, blogPlans.planner(), WithConcurrency(1))

	first, err := p.Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	second, err := p.Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	if diff := cmp.Diff(first.Map(), second.Map()); diff != "" {
		t.Errorf("projections differ (-first +second):\n%s", diff)
	}
}

func TestProjectConcurrentCalls(t *testing.T) {
	store := newFakeStore()
	u := user(1, "u-1", "bill")

	var posts []*record.Record
	for i := range 20 {
		posts = append(posts, post(i+1, fmt.Sprintf("p-%d", i+1), "t", 1).Include("user", record.One(u)))
	}

	team := record.New("team", 1).Include("posts", record.Many(posts...))
	req := Request{Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")}}
	p := New(store, blogPlans.planner(), WithConcurrency(4))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := p.Project(context.Background(), team, req, record.Path{})
			assert.NoError(t, err)

			list, _ := res.List("posts")
			assert.Len(t, list, 20)

			for i, r := range list {
				v, _ := r.Get("uuid")
				assert.Equal(t, fmt.Sprintf("p-%d", i+1), v, "collection order is preserved")
			}
		}()
	}

	wg.Wait()
}

func TestProjectTracesFetches(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	store := newFakeStore()
	p1 := post(1, "p-1", "hello", 7)
	store.relate(p1, "user", record.One(user(7, "u-7", "ann")))

	req := blogPlans["post"]
	req.Policy = descriptor.Load()

	_, err := New(store, blogPlans.planner(), WithTracer(provider.Tracer("test"))).
		Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}

	assert.ElementsMatch(t, []string{
		"projector.FetchAssociation",
		"projector.Project",
		"projector.Project",
	}, names)
}

type unknownStore struct {
	*fakeStore
}

func (s unknownStore) FetchAssociation(ctx context.Context, rec *record.Record, association string) (record.Link, error) {
	if _, err := s.fakeStore.FetchAssociation(ctx, rec, association); err != nil {
		return record.Link{}, err
	}

	if _, ok := s.relations[relationKey(rec, association)]; !ok {
		return record.Link{}, fmt.Errorf("%s.%s: %w", rec.Type, association, ErrNoSuchAssociation)
	}

	return s.relations[relationKey(rec, association)], nil
}

func TestProjectUnknownAssociationIsOmitted(t *testing.T) {
	store := unknownStore{newFakeStore()}
	c := record.New("comment", 1).Set("uuid", "c-1").Set("body", "hi")

	req := Request{
		Attributes:   []string{"uuid", "editorUuid", "body"},
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("likes"), descriptor.Assoc("editor")},
		Policy:       descriptor.Load(),
	}

	sink := diagnostic.NewCollector()
	res, err := New(store, blogPlans.planner(), WithSink(sink)).Project(context.Background(), c, req, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"uuid": "c-1", "body": "hi"}, res.Map())
	assert.Equal(t, 1, store.fetchCount(c, "likes"))
	assert.Equal(t, 1, store.fetchCount(c, "editor"))
	assert.Empty(t, sink.Messages())
}

func TestProjectUnknownAssociationKeepsRealFailures(t *testing.T) {
	store := unknownStore{newFakeStore()}
	c := record.New("comment", 1).Set("uuid", "c-1")
	boom := errors.New("connection reset")
	store.failing[relationKey(c, "post")] = boom

	req := Request{
		Attributes:   []string{"uuid"},
		Associations: []descriptor.AssociationSpec{descriptor.Assoc("likes"), descriptor.Assoc("post")},
		Policy:       descriptor.Load(),
	}

	res, err := New(store, blogPlans.planner()).Project(context.Background(), c, req, record.Path{})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, res)
}

func TestProjectResidentNullIsNotFetched(t *testing.T) {
	store := newFakeStore()
	p1 := record.New("post", 1).Set("uuid", "p-1").Set("title", "orphan").Include("user", record.One(nil))
	store.relate(p1, "user", record.One(user(7, "u-7", "ann")))

	req := blogPlans["post"]
	req.Policy = descriptor.Load()

	res, err := New(store, blogPlans.planner()).Project(context.Background(), p1, req, record.Path{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"uuid": "p-1", "title": "orphan"}, res.Map())
	assert.Zero(t, store.totalFetches())
}

func TestProjectResidentTargetWithoutKey(t *testing.T) {
	nameless := record.New("user", 7).Set("name", "ann")

	t.Run("load", func(t *testing.T) {
		store := newFakeStore()
		p1 := post(1, "p-1", "hello", 7).Include("user", record.One(nameless))

		req := Request{Attributes: []string{"uuid", "userUuid"}, Policy: descriptor.Load()}

		res, err := New(store, blogPlans.planner()).Project(context.Background(), p1, req, record.Path{})
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"uuid": "p-1"}, res.Map())
		assert.Zero(t, store.totalFetches())
	})

	t.Run("warn", func(t *testing.T) {
		store := newFakeStore()
		sink := diagnostic.NewCollector()
		p1 := post(1, "p-1", "hello", 7).Include("user", record.One(nameless))

		req := Request{Attributes: []string{"uuid", "userUuid"}, Policy: descriptor.Warn()}

		res, err := New(store, blogPlans.planner(), WithSink(sink)).Project(context.Background(), p1, req, record.Path{})
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"uuid": "p-1"}, res.Map())
		assert.Equal(t, []string{"userUuid attribute requested but included user model has no uuid"}, sink.Messages())
		assert.Zero(t, store.totalFetches())
	})
}

func TestProjectForeignKeyOnPathSkipsAssociation(t *testing.T) {
	store := newFakeStore()
	sink := diagnostic.NewCollector()

	// The post only knows its author by userId; the user is not resident.
	u := user(1, "u-1", "bill")
	p1 := post(1, "p-1", "first", 1)
	u.Include("posts", record.Many(p1))

	nested := plans{
		"user": {
			Attributes:   []string{"uuid"},
			Associations: []descriptor.AssociationSpec{descriptor.Assoc("posts")},
			Policy:       descriptor.Warn(),
		},
		"post": {
			Attributes:   []string{"uuid"},
			Associations: []descriptor.AssociationSpec{descriptor.Assoc("user")},
			Policy:       descriptor.Warn(),
		},
	}

	res, err := New(store, nested.planner(), WithSink(sink)).Project(context.Background(), u, nested["user"], record.Path{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"uuid":  "u-1",
		"posts": []any{map[string]any{"uuid": "p-1"}},
	}, res.Map())
	assert.Empty(t, sink.Messages())
	assert.Zero(t, store.totalFetches())

	// Off the path the same post reports its missing user.
	_, err = New(store, nested.planner(), WithSink(sink)).Project(context.Background(), p1, nested["post"], record.Path{})
	require.NoError(t, err)
	assert.Equal(t, []string{"user association requested but user model was not included"}, sink.Messages())
}
