package impact

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

func strPtr(s string) *string { return &s }

func tracking(pairs ...any) util.OrderedMap[bool] {
	var m util.OrderedMap[bool]
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(bool))
	}
	return m
}

func manifest(pairs ...string) snapshot.Manifest {
	var m snapshot.Manifest
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

type file struct {
	key  string
	hash string
	size map[string]int64
}

func group(rules util.OrderedMap[bool], manifests map[string]snapshot.Manifest, files ...file) snapshot.RawGroup {
	g := snapshot.RawGroup{Tracking: rules}
	for _, key := range util.SortedKeys(manifests) {
		g.ManifestMap.Set(key, manifests[key])
	}
	for _, f := range files {
		g.FileMap.Set(f.key, snapshot.FileRecord{Hash: f.hash, SizeMap: f.size})
	}
	return g
}

func snap(groups map[string]snapshot.RawGroup) *snapshot.RawSnapshot {
	s := &snapshot.RawSnapshot{}
	for _, name := range util.SortedKeys(groups) {
		s.Groups.Set(name, groups[name])
	}
	return s
}

// asMap flattens a GroupDiff for order-insensitive comparison.
func asMap(d GroupDiff) map[string]DiffEntry {
	m := make(map[string]DiffEntry, len(d))
	for _, e := range d {
		m[e.Key] = e
	}
	return m
}

func TestIsTracked(t *testing.T) {
	tests := []struct {
		name  string
		rules util.OrderedMap[bool]
		key   string
		want  bool
	}{
		{"no rules", tracking(), "whatever.js", true},
		{"no matching rule", tracking("foo.html", false), "whatever.js", true},
		{"single exclusion", tracking("foo.html", false), "foo.html", false},
		{"include all", tracking("**/*", true), "dir/file.js", true},
		{"later exclusion wins", tracking("**/*", true, "**/*.map", false), "dist/a.js.map", false},
		{"later inclusion wins", tracking("**/*.map", false, "**/*", true), "dist/a.js.map", true},
		{"non matching later rule keeps earlier", tracking("**/*", false, "*.css", true), "dir/a.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTracked(&tt.rules, tt.key); got != tt.want {
				t.Errorf("IsTracked(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestBuildReverseIndex(t *testing.T) {
	g := group(tracking(), map[string]snapshot.Manifest{
		"dist/cdn/manifest.json": manifest(
			"svg_critical.js", "dmp.svg_critical.2202.js",
			"missing.js", "missing.123.js",
			// A leading slash resolves from the snapshot root, like an
			// absolute URL path, not from the manifest's directory.
			"rooted.js", "/assets/rooted.9.js",
		),
		"manifest.json": manifest("main.js", "main.abc.js"),
	},
		file{key: "dist/cdn/dmp.svg_critical.2202.js", hash: "h1"},
		file{key: "main.abc.js", hash: "h2"},
		file{key: "assets/rooted.9.js", hash: "h3"},
	)

	got := BuildReverseIndex(&g.ManifestMap, &g.FileMap)
	want := map[string]string{
		"dist/cdn/dmp.svg_critical.2202.js": "dist/cdn/svg_critical.js",
		"main.abc.js":                       "main.js",
		"assets/rooted.9.js":                "dist/cdn/rooted.js",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildReverseIndex() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveKey(t *testing.T) {
	tests := []struct {
		dir, ref string
		want     string
	}{
		{"dist/cdn", "main.js", "dist/cdn/main.js"},
		{"dist/cdn", "js/main.js", "dist/cdn/js/main.js"},
		{"dist/cdn", "../main.js", "dist/main.js"},
		{".", "main.js", "main.js"},
		{"dist/cdn", "/assets/main.js", "assets/main.js"},
		{"dist/cdn", "/assets/../main.js", "main.js"},
	}

	for _, tt := range tests {
		if got := resolveKey(tt.dir, tt.ref); got != tt.want {
			t.Errorf("resolveKey(%q, %q) = %q, want %q", tt.dir, tt.ref, got, tt.want)
		}
	}
}

func TestBuildReverseIndexLaterMappingWins(t *testing.T) {
	g := group(tracking(), map[string]snapshot.Manifest{
		"manifest.json": manifest(
			"first.js", "shared.js",
			"second.js", "shared.js",
		),
	}, file{key: "shared.js", hash: "h"})

	got := BuildReverseIndex(&g.ManifestMap, &g.FileMap)
	if got["shared.js"] != "second.js" {
		t.Errorf("reverse index[shared.js] = %q, want second.js", got["shared.js"])
	}
}

func TestNormalize(t *testing.T) {
	g := group(
		tracking("**/*", true, "main.js", false),
		map[string]snapshot.Manifest{"manifest.json": manifest("main.js", "main.abc.js")},
		file{key: "main.abc.js", hash: "h1"},
		file{key: "vendor.js", hash: "h2", size: map[string]int64{"raw": 10}},
	)

	got := Normalize(&g)
	want := []NormalizedEntry{
		{RelativeURL: "vendor.js", Hash: "h2", SizeMap: map[string]int64{"raw": 10}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeNil(t *testing.T) {
	if got := Normalize(nil); got != nil {
		t.Errorf("Normalize(nil) = %v, want nil", got)
	}
}

func TestPartition(t *testing.T) {
	g := group(
		tracking("**/*.map", false),
		nil,
		file{key: "a.js", hash: "h1"},
		file{key: "a.js.map", hash: "h2"},
	)
	tracked, ignored := Partition(&g)
	if diff := cmp.Diff([]string{"a.js"}, tracked); diff != "" {
		t.Errorf("tracked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.js.map"}, ignored); diff != "" {
		t.Errorf("ignored mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareSnapshotsRenamedAddedRemoved(t *testing.T) {
	before := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"manifest.json": manifest(
				"dir/file.js", "dir/file.beforeMerge.js",
				"old.js", "old.beforeMerge.js",
			)},
			file{key: "dir/file.beforeMerge.js", hash: "hash1"},
			file{key: "old.beforeMerge.js", hash: "hash2"},
			file{key: "whatever.js", hash: "hash3"},
		),
	})
	after := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"manifest.json": manifest(
				"dir/file.js", "dir/file.afterMerge.js",
				"new.js", "new.afterMerge.js",
			)},
			file{key: "dir/file.afterMerge.js", hash: "hash4"},
			file{key: "new.afterMerge.js", hash: "hash5"},
			file{key: "whatever.js", hash: "hash6"},
		),
	})

	got := CompareSnapshots(before, after)
	want := map[string]DiffEntry{
		"dir/file.afterMerge.js": {
			Key:         "dir/file.afterMerge.js",
			BeforeMerge: &NormalizedEntry{RelativeURL: "dir/file.beforeMerge.js", ManifestKey: strPtr("dir/file.js"), Hash: "hash1"},
			AfterMerge:  &NormalizedEntry{RelativeURL: "dir/file.afterMerge.js", ManifestKey: strPtr("dir/file.js"), Hash: "hash4"},
		},
		"new.afterMerge.js": {
			Key:        "new.afterMerge.js",
			AfterMerge: &NormalizedEntry{RelativeURL: "new.afterMerge.js", ManifestKey: strPtr("new.js"), Hash: "hash5"},
		},
		"old.beforeMerge.js": {
			Key:         "old.beforeMerge.js",
			BeforeMerge: &NormalizedEntry{RelativeURL: "old.beforeMerge.js", ManifestKey: strPtr("old.js"), Hash: "hash2"},
		},
		"whatever.js": {
			Key:         "whatever.js",
			BeforeMerge: &NormalizedEntry{RelativeURL: "whatever.js", Hash: "hash3"},
			AfterMerge:  &NormalizedEntry{RelativeURL: "whatever.js", Hash: "hash6"},
		},
	}

	if len(got) != 1 {
		t.Fatalf("CompareSnapshots() groups = %d, want 1", len(got))
	}
	if diff := cmp.Diff(want, asMap(got["dist"])); diff != "" {
		t.Errorf("CompareSnapshots() mismatch (-want +got):\n%s", diff)
	}

	renamed, _ := got["dist"].Lookup("dir/file.afterMerge.js")
	if renamed.BeforeMerge.RelativeURL == renamed.Key {
		t.Error("renamed entry should keep the before-merge physical key on its before side")
	}
}

func TestCompareSnapshotsMappedAndIgnoredFile(t *testing.T) {
	side := func(hash string) *snapshot.RawSnapshot {
		return snap(map[string]snapshot.RawGroup{
			"dist": group(
				tracking("foo.html", false),
				map[string]snapshot.Manifest{"manifest.json": manifest("foo.html", "bar.html")},
				file{key: "whatever.js", hash: hash},
			),
		})
	}

	got := CompareSnapshots(side("hash"), side("hash2"))
	want := Result{
		"dist": {
			{
				Key:         "whatever.js",
				BeforeMerge: &NormalizedEntry{RelativeURL: "whatever.js", Hash: "hash"},
				AfterMerge:  &NormalizedEntry{RelativeURL: "whatever.js", Hash: "hash2"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CompareSnapshots() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareSnapshotsManifestResolvesOnOneSideOnly(t *testing.T) {
	const physical = "dist/cdn/dmp.svg_critical.2202bba64ea46ecc7424.js"
	const hash = `"2da4-3NMwjvenZ2aks5RKh8BPcDEnaco"`
	size := map[string]int64{"raw": 11684}

	before := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"dist/cdn/manifest.json": manifest(
				"svg_critical.js", "dmp.svg_critical.2202bba64ea46ecc7424.js",
			)},
			file{key: physical, hash: hash, size: size},
		),
	})
	after := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"dist/cdn/manifest.json": manifest(
				"svg_critical.js", "/player/neondmp.svg_critical.2202bba64ea46ecc7424.js",
			)},
			file{key: physical, hash: hash, size: size},
		),
	})

	got := CompareSnapshots(before, after)
	want := Result{
		"dist": {
			{
				Key: physical,
				BeforeMerge: &NormalizedEntry{
					RelativeURL: physical,
					ManifestKey: strPtr("dist/cdn/svg_critical.js"),
					Hash:        hash,
					SizeMap:     size,
				},
				AfterMerge: &NormalizedEntry{
					RelativeURL: physical,
					Hash:        hash,
					SizeMap:     size,
				},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CompareSnapshots() mismatch (-want +got):\n%s", diff)
	}
}

// A manifest that resolves on one side only, where the physical keys also
// differ, is reported as a removal plus an unrelated addition. This mirrors
// the observed behavior and is kept on purpose.
func TestCompareAsymmetricResolutionStaysSplit(t *testing.T) {
	before := []NormalizedEntry{
		{RelativeURL: "app.111.js", ManifestKey: strPtr("app.js"), Hash: "h1"},
	}
	after := []NormalizedEntry{
		{RelativeURL: "app.222.js", Hash: "h2"},
	}

	got := Compare(before, after)
	want := GroupDiff{
		{Key: "app.111.js", BeforeMerge: &before[0]},
		{Key: "app.222.js", AfterMerge: &after[0]},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compare() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareIdentityCollisionKeepsEveryFile(t *testing.T) {
	// main.js exists as a plain file and is also the logical key of main.abc.js.
	before := []NormalizedEntry{
		{RelativeURL: "main.js", Hash: "h1"},
		{RelativeURL: "main.abc.js", ManifestKey: strPtr("main.js"), Hash: "h2"},
	}
	after := []NormalizedEntry{
		{RelativeURL: "main.js", Hash: "h1"},
		{RelativeURL: "main.abc.js", ManifestKey: strPtr("main.js"), Hash: "h2"},
	}

	got := Compare(before, after)
	if len(got) != 2 {
		t.Fatalf("Compare() = %d entries, want 2: %+v", len(got), got)
	}
	for _, e := range got {
		if e.BeforeMerge == nil || e.AfterMerge == nil {
			t.Errorf("entry %q should be matched on both sides", e.Key)
			continue
		}
		if e.BeforeMerge.RelativeURL != e.AfterMerge.RelativeURL {
			t.Errorf("entry %q paired %q with %q", e.Key, e.BeforeMerge.RelativeURL, e.AfterMerge.RelativeURL)
		}
	}
}

func TestCompareRemovedFileKeyTakenByAnotherFile(t *testing.T) {
	// p.js is removed; q.js is renamed to p.js through the manifest.
	before := []NormalizedEntry{
		{RelativeURL: "p.js", ManifestKey: strPtr("L"), Hash: "h1"},
		{RelativeURL: "q.js", ManifestKey: strPtr("M"), Hash: "h2"},
	}
	after := []NormalizedEntry{
		{RelativeURL: "p.js", ManifestKey: strPtr("M"), Hash: "h2"},
	}

	got := Compare(before, after)
	want := GroupDiff{
		{Key: "p.js (removed)", BeforeMerge: &before[0]},
		{Key: "p.js", BeforeMerge: &before[1], AfterMerge: &after[0]},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Compare() mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 {
		t.Errorf("marshaled diff has %d distinct keys, want 2: %s", len(decoded), data)
	}
}

func TestRemovedKey(t *testing.T) {
	taken := map[string]bool{"a.js": true, "a.js (removed)": true}
	if got := removedKey("a.js", taken); got != "a.js (removed 2)" {
		t.Errorf("removedKey() = %q, want %q", got, "a.js (removed 2)")
	}
	if got := removedKey("b.js", taken); got != "b.js (removed)" {
		t.Errorf("removedKey() = %q, want %q", got, "b.js (removed)")
	}
}

func TestCompareOrder(t *testing.T) {
	before := []NormalizedEntry{
		{RelativeURL: "b.js", Hash: "1"},
		{RelativeURL: "a.js", Hash: "1"},
	}
	after := []NormalizedEntry{
		{RelativeURL: "c.js", Hash: "1"},
		{RelativeURL: "a.js", Hash: "2"},
	}

	var keys []string
	for _, e := range Compare(before, after) {
		keys = append(keys, e.Key)
	}
	if diff := cmp.Diff([]string{"b.js", "a.js", "c.js"}, keys); diff != "" {
		t.Errorf("Compare() order mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareSnapshotsWithItself(t *testing.T) {
	s := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true, "**/*.map", false),
			map[string]snapshot.Manifest{"manifest.json": manifest("main.js", "main.abc.js")},
			file{key: "main.abc.js", hash: "h1", size: map[string]int64{"raw": 100}},
			file{key: "main.abc.js.map", hash: "h2"},
			file{key: "styles.css", hash: "h3"},
		),
		"lib": group(tracking(), nil, file{key: "lib/index.js", hash: "h4"}),
	})

	got := CompareSnapshots(s, s)
	if len(got) != 2 {
		t.Fatalf("CompareSnapshots() groups = %d, want 2", len(got))
	}
	for name, diff := range got {
		for _, e := range diff {
			if e.BeforeMerge == nil || e.AfterMerge == nil {
				t.Errorf("%s/%s: both sides should be present", name, e.Key)
				continue
			}
			if d := cmp.Diff(e.BeforeMerge, e.AfterMerge); d != "" {
				t.Errorf("%s/%s: sides differ (-before +after):\n%s", name, e.Key, d)
			}
			if e.Event() != EventUnchanged {
				t.Errorf("%s/%s: Event() = %q, want unchanged", name, e.Key, e.Event())
			}
		}
	}
	if _, ok := got["dist"].Lookup("main.abc.js.map"); ok {
		t.Error("untracked file should not appear")
	}
}

func TestCompareSnapshotsCompleteness(t *testing.T) {
	before := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"manifest.json": manifest("a.js", "a.1.js", "b.js", "b.1.js")},
			file{key: "a.1.js", hash: "a1"},
			file{key: "b.1.js", hash: "b1"},
			file{key: "c.js", hash: "c1"},
			file{key: "d.js", hash: "d1"},
		),
	})
	after := snap(map[string]snapshot.RawGroup{
		"dist": group(
			tracking("**/*", true),
			map[string]snapshot.Manifest{"manifest.json": manifest("a.js", "a.2.js", "e.js", "e.1.js")},
			file{key: "a.2.js", hash: "a2"},
			file{key: "b.1.js", hash: "b1"},
			file{key: "c.js", hash: "c2"},
			file{key: "e.1.js", hash: "e1"},
		),
	})

	got := CompareSnapshots(before, after)["dist"]

	beforeSeen := make(map[string]int)
	afterSeen := make(map[string]int)
	for _, e := range got {
		if e.BeforeMerge == nil && e.AfterMerge == nil {
			t.Errorf("entry %q has no side", e.Key)
		}
		if e.BeforeMerge != nil {
			beforeSeen[e.BeforeMerge.RelativeURL]++
		}
		if e.AfterMerge != nil {
			afterSeen[e.AfterMerge.RelativeURL]++
		}
	}

	for _, key := range []string{"a.1.js", "b.1.js", "c.js", "d.js"} {
		if beforeSeen[key] != 1 {
			t.Errorf("before %q seen %d times, want 1", key, beforeSeen[key])
		}
	}
	for _, key := range []string{"a.2.js", "b.1.js", "c.js", "e.1.js"} {
		if afterSeen[key] != 1 {
			t.Errorf("after %q seen %d times, want 1", key, afterSeen[key])
		}
	}

	events := make(map[string]Event)
	for _, e := range got {
		events[e.Key] = e.Event()
	}
	wantEvents := map[string]Event{
		"a.2.js": EventRenamed,
		"b.1.js": EventUnchanged,
		"c.js":   EventModified,
		"d.js":   EventRemoved,
		"e.1.js": EventAdded,
	}
	if diff := cmp.Diff(wantEvents, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareSnapshotsGroupOnOneSide(t *testing.T) {
	before := snap(map[string]snapshot.RawGroup{
		"dist":  group(tracking(), nil, file{key: "a.js", hash: "1"}),
		"empty": group(tracking(), nil),
	})
	after := snap(map[string]snapshot.RawGroup{
		"dist":  group(tracking(), nil, file{key: "a.js", hash: "1"}),
		"empty": group(tracking(), nil),
		"docs":  group(tracking(), nil, file{key: "docs/index.html", hash: "2"}),
	})

	got := CompareSnapshots(before, after)
	if _, ok := got["empty"]; ok {
		t.Error("group without entries should be omitted")
	}
	docs, ok := got["docs"]
	if !ok {
		t.Fatal("group present only after should be compared")
	}
	if len(docs) != 1 || docs[0].Event() != EventAdded {
		t.Errorf("docs = %+v, want one added entry", docs)
	}

	if got := CompareSnapshots(nil, nil); len(got) != 0 {
		t.Errorf("CompareSnapshots(nil, nil) = %v, want empty", got)
	}
}

func TestSizeDelta(t *testing.T) {
	d := GroupDiff{
		{
			Key:         "a.js",
			BeforeMerge: &NormalizedEntry{RelativeURL: "a.js", Hash: "1", SizeMap: map[string]int64{"raw": 100, "gzip": 40}},
			AfterMerge:  &NormalizedEntry{RelativeURL: "a.js", Hash: "2", SizeMap: map[string]int64{"raw": 150, "gzip": 50}},
		},
		{
			Key:        "b.js",
			AfterMerge: &NormalizedEntry{RelativeURL: "b.js", Hash: "3", SizeMap: map[string]int64{"raw": 20}},
		},
		{
			Key:         "c.js",
			BeforeMerge: &NormalizedEntry{RelativeURL: "c.js", Hash: "4", SizeMap: map[string]int64{"raw": 30, "brotli": 9}},
		},
	}

	if got := d[0].SizeDelta("raw"); got != 50 {
		t.Errorf("a.js raw delta = %d, want 50", got)
	}
	if got := d[1].SizeDelta("raw"); got != 20 {
		t.Errorf("b.js raw delta = %d, want 20", got)
	}
	if got := d[2].SizeDelta("raw"); got != -30 {
		t.Errorf("c.js raw delta = %d, want -30", got)
	}
	if got := d.SizeDelta("raw"); got != 40 {
		t.Errorf("group raw delta = %d, want 40", got)
	}
	if diff := cmp.Diff([]string{"raw", "gzip", "brotli"}, d.Metrics("raw", "gzip")); diff != "" {
		t.Errorf("Metrics() mismatch (-want +got):\n%s", diff)
	}
}

func TestResultJSON(t *testing.T) {
	result := Result{
		"dist": {
			{
				Key:         "whatever.js",
				BeforeMerge: &NormalizedEntry{RelativeURL: "whatever.js", Hash: "hash"},
				AfterMerge:  &NormalizedEntry{RelativeURL: "whatever.js", ManifestKey: strPtr("w.js"), Hash: "hash2", SizeMap: map[string]int64{"raw": 1}},
			},
			{
				Key:         "gone.js",
				BeforeMerge: &NormalizedEntry{RelativeURL: "gone.js", Hash: "h"},
			},
		},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"dist":{` +
		`"whatever.js":{"beforeMerge":{"relativeUrl":"whatever.js","manifestKey":null,"hash":"hash"},` +
		`"afterMerge":{"relativeUrl":"whatever.js","manifestKey":"w.js","hash":"hash2","sizeMap":{"raw":1}}},` +
		`"gone.js":{"beforeMerge":{"relativeUrl":"gone.js","manifestKey":null,"hash":"h"},"afterMerge":null}}}`
	if string(data) != want {
		t.Errorf("Marshal() =\n%s\nwant\n%s", data, want)
	}
}
