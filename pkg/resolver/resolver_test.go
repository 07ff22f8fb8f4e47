package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/fire-square/FireLaunch/pkg/digest"
	"github.com/fire-square/FireLaunch/pkg/manifest"
	"github.com/fire-square/FireLaunch/pkg/progress"
	"github.com/fire-square/FireLaunch/pkg/store"
)

const metaURL = "https://meta.test/versions/{id}.json"

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "resolver_test",
		Level: hclog.Trace,
	})
}

// fakeSource serves documents from memory.
type fakeSource struct {
	mu      sync.Mutex
	docs    map[string][]byte
	offline bool
	hits    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{docs: make(map[string][]byte), hits: make(map[string]int)}
}

func (f *fakeSource) Document(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[url]++
	if f.offline {
		return nil, errors.New("network is unreachable")
	}
	data, ok := f.docs[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404", url)
	}
	return data, nil
}

func (f *fakeSource) version(t *testing.T, v map[string]any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f.mu.Lock()
	f.docs[strings.ReplaceAll(metaURL, "{id}", v["id"].(string))] = data
	f.mu.Unlock()
}

// fakeArtifacts stores blobs by URL without any network.
type fakeArtifacts struct {
	st      *store.Store
	mu      sync.Mutex
	blobs   map[string][]byte
	offline bool
}

func (f *fakeArtifacts) FetchAll(ctx context.Context, refs []store.Ref, sink progress.Sink) error {
	for _, ref := range refs {
		if f.st.Verify(ref) == store.Valid {
			continue
		}
		f.mu.Lock()
		data, ok := f.blobs[ref.URL]
		offline := f.offline
		f.mu.Unlock()
		if offline || !ok {
			return fmt.Errorf("cannot download %s", ref.URL)
		}
		if err := f.st.Put(ctx, ref, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	src       *fakeSource
	artifacts *fakeArtifacts
	store     *store.Store
}

func newFixture(t *testing.T) *fixture {
	st, err := store.Open(t.TempDir(), store.Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return &fixture{
		src:       newFakeSource(),
		artifacts: &fakeArtifacts{st: st, blobs: make(map[string][]byte)},
		store:     st,
	}
}

var linux = manifest.Facts{OS: "linux", Arch: "x86_64"}

func (fx *fixture) resolver(opts Options) *Resolver {
	opts.ManifestURL = metaURL
	if opts.Facts == nil {
		opts.Facts = &linux
	}
	if opts.AssetsURL == "" {
		opts.AssetsURL = "https://assets.test"
	}
	opts.Logger = testLogger()
	return New(fx.store, fx.src, fx.artifacts, opts)
}

func sha1Of(s string) string {
	return digest.OfBytes([]byte(s), digest.SHA1).Hex
}

func library(name, sha string) map[string]any {
	path, _ := manifest.MavenPath(name, "")
	return map[string]any{
		"name": name,
		"downloads": map[string]any{
			"artifact": map[string]any{
				"path": path,
				"url":  "https://libraries.test/" + path,
				"sha1": sha,
				"size": 10,
			},
		},
	}
}

func libraryKeys(res *Resolved) []string {
	var keys []string
	for _, l := range res.Libraries {
		keys = append(keys, l.Name+"@"+l.Ref.Digest.Hex[:4])
	}
	return keys
}

func TestResolveChildOverridesParentLibrary(t *testing.T) {
	fx := newFixture(t)
	d1, d2 := sha1Of("one"), sha1Of("two")
	fx.src.version(t, map[string]any{
		"id":        "1.20-base",
		"mainClass": "net.minecraft.client.main.Main",
		"libraries": []any{
			library("org.example:l0:1", d1),
			library("org.example:l1:1", d1),
			library("org.example:l2:1", d1),
		},
	})
	fx.src.version(t, map[string]any{
		"id":           "1.20",
		"inheritsFrom": "1.20-base",
		"libraries": []any{
			library("org.example:l3:1", d1),
			library("org.example:l1:1", d2),
		},
	})

	res, err := fx.resolver(Options{}).Resolve(context.Background(), "1.20")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := []string{
		"org.example:l0:1@" + d1[:4],
		"org.example:l1:1@" + d2[:4],
		"org.example:l2:1@" + d1[:4],
		"org.example:l3:1@" + d1[:4],
	}
	got := libraryKeys(res)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("libraries = %v, want %v", got, want)
	}
	if res.Version.MainClass != "net.minecraft.client.main.Main" {
		t.Errorf("MainClass = %q, want inherited", res.Version.MainClass)
	}
	if strings.Join(res.Chain, ",") != "1.20,1.20-base" {
		t.Errorf("Chain = %v", res.Chain)
	}

	count := 0
	for _, ref := range res.Artifacts() {
		if strings.Contains(ref.Path, "/l1/") {
			count++
			if ref.Digest.Hex != d2 {
				t.Errorf("l1 digest = %s, want %s", ref.Digest.Hex, d2)
			}
		}
	}
	if count != 1 {
		t.Errorf("l1 appears %d times in artifacts, want 1", count)
	}
}

func TestResolveCycles(t *testing.T) {
	fx := newFixture(t)
	fx.src.version(t, map[string]any{"id": "a", "inheritsFrom": "b"})
	fx.src.version(t, map[string]any{"id": "b", "inheritsFrom": "c"})
	fx.src.version(t, map[string]any{"id": "c", "inheritsFrom": "a"})
	fx.src.version(t, map[string]any{"id": "self", "inheritsFrom": "self"})

	r := fx.resolver(Options{})
	for _, id := range []string{"a", "self"} {
		if _, err := r.Resolve(context.Background(), id); !errors.Is(err, ErrCyclicInheritance) {
			t.Errorf("Resolve(%s) error = %v, want ErrCyclicInheritance", id, err)
		}
	}
}

func TestResolveDepthBound(t *testing.T) {
	fx := newFixture(t)
	for i := 0; i < 5; i++ {
		v := map[string]any{"id": fmt.Sprintf("v%d", i)}
		if i < 4 {
			v["inheritsFrom"] = fmt.Sprintf("v%d", i+1)
		}
		fx.src.version(t, v)
	}

	if _, err := fx.resolver(Options{MaxDepth: 3}).Resolve(context.Background(), "v0"); !errors.Is(err, ErrInheritanceTooDeep) {
		t.Errorf("Resolve error = %v, want ErrInheritanceTooDeep", err)
	}
	if _, err := fx.resolver(Options{MaxDepth: 5}).Resolve(context.Background(), "v0"); err != nil {
		t.Errorf("Resolve with room: %v", err)
	}
}

func TestResolveRulesAndNatives(t *testing.T) {
	fx := newFixture(t)
	osxOnly := library("org.example:osx-only:1", sha1Of("osx"))
	osxOnly["rules"] = []any{map[string]any{"action": "allow", "os": map[string]any{"name": "osx"}}}
	notOSX := library("org.example:not-osx:1", sha1Of("not-osx"))
	notOSX["rules"] = []any{
		map[string]any{"action": "allow"},
		map[string]any{"action": "disallow", "os": map[string]any{"name": "osx"}},
	}
	nativeSHA := sha1Of("natives")
	platform := map[string]any{
		"name":    "org.lwjgl.lwjgl:lwjgl-platform:2.9.4",
		"natives": map[string]any{"linux": "natives-linux", "windows": "natives-windows-${arch}"},
		"extract": map[string]any{"exclude": []any{"META-INF/"}},
		"downloads": map[string]any{
			"classifiers": map[string]any{
				"natives-linux": map[string]any{
					"path": "org/lwjgl/lwjgl/lwjgl-platform/2.9.4/lwjgl-platform-2.9.4-natives-linux.jar",
					"url":  "https://libraries.test/natives-linux.jar",
					"sha1": nativeSHA,
				},
			},
		},
	}
	fx.src.version(t, map[string]any{
		"id":        "1.8.9",
		"libraries": []any{osxOnly, notOSX, platform},
	})

	res, err := fx.resolver(Options{}).Resolve(context.Background(), "1.8.9")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Libraries) != 2 {
		t.Fatalf("libraries = %v, want not-osx and natives", libraryKeys(res))
	}
	if res.Libraries[0].Name != "org.example:not-osx:1" || res.Libraries[0].Native {
		t.Errorf("first library = %+v", res.Libraries[0])
	}
	natives := res.Natives()
	if len(natives) != 1 {
		t.Fatalf("natives = %d, want 1", len(natives))
	}
	n := natives[0]
	if n.Ref.Kind != store.KindNative || n.Ref.Digest.Hex != nativeSHA {
		t.Errorf("native ref = %+v", n.Ref)
	}
	if n.Ref.Path != "libraries/org/lwjgl/lwjgl/lwjgl-platform/2.9.4/lwjgl-platform-2.9.4-natives-linux.jar" {
		t.Errorf("native path = %s", n.Ref.Path)
	}
	if len(n.Exclude) != 1 || n.Exclude[0] != "META-INF/" {
		t.Errorf("exclude = %v", n.Exclude)
	}
	for _, ref := range res.Classpath() {
		if ref.Kind == store.KindNative {
			t.Errorf("native %s on classpath", ref.Path)
		}
	}
}

func TestResolveOffline(t *testing.T) {
	fx := newFixture(t)
	fx.src.version(t, map[string]any{"id": "base", "mainClass": "Main"})
	fx.src.version(t, map[string]any{"id": "child", "inheritsFrom": "base"})

	if _, err := fx.resolver(Options{}).Resolve(context.Background(), "child"); err != nil {
		t.Fatalf("online Resolve: %v", err)
	}

	fx.src.offline = true
	res, err := fx.resolver(Options{}).Resolve(context.Background(), "child")
	if err != nil {
		t.Fatalf("offline Resolve of cached version: %v", err)
	}
	if res.Version.MainClass != "Main" {
		t.Errorf("MainClass = %q", res.Version.MainClass)
	}

	if _, err := fx.resolver(Options{}).Resolve(context.Background(), "unseen"); !errors.Is(err, ErrUnreachable) {
		t.Errorf("offline Resolve of unseen version = %v, want ErrUnreachable", err)
	}

	// Refresh falls back to the cached copy when the network fails.
	if _, err := fx.resolver(Options{Refresh: true}).Resolve(context.Background(), "child"); err != nil {
		t.Errorf("Refresh Resolve offline: %v", err)
	}
}

func TestResolveServesCachedManifestWithoutNetwork(t *testing.T) {
	fx := newFixture(t)
	fx.src.version(t, map[string]any{"id": "1.0"})
	url := strings.ReplaceAll(metaURL, "{id}", "1.0")

	fx.resolver(Options{}).Resolve(context.Background(), "1.0")
	fx.resolver(Options{}).Resolve(context.Background(), "1.0")
	if hits := fx.src.hits[url]; hits != 1 {
		t.Errorf("manifest fetched %d times, want 1", hits)
	}
	fx.resolver(Options{Refresh: true}).Resolve(context.Background(), "1.0")
	if hits := fx.src.hits[url]; hits != 2 {
		t.Errorf("manifest fetched %d times after refresh, want 2", hits)
	}
}

func TestResolveMalformed(t *testing.T) {
	fx := newFixture(t)
	fx.src.docs[strings.ReplaceAll(metaURL, "{id}", "broken")] = []byte(`{"id": "broken", "libraries": "nope"}`)
	fx.src.docs[strings.ReplaceAll(metaURL, "{id}", "liar")] = []byte(`{"id": "someone-else"}`)

	r := fx.resolver(Options{})
	for _, id := range []string{"broken", "liar", "../escape"} {
		if _, err := r.Resolve(context.Background(), id); !errors.Is(err, ErrMalformedManifest) {
			t.Errorf("Resolve(%q) error = %v, want ErrMalformedManifest", id, err)
		}
	}
}

func TestResolveAssets(t *testing.T) {
	fx := newFixture(t)
	shared := sha1Of("shared")
	unique := sha1Of("unique")
	index := fmt.Sprintf(`{"objects": {
		"a/first.png": {"hash": %q, "size": 6},
		"b/second.png": {"hash": %q, "size": 6},
		"c/other.ogg": {"hash": %q, "size": 6}
	}}`, shared, shared, unique)
	indexSHA := sha1Of(index)
	fx.artifacts.blobs["https://meta.test/indexes/1.8.json"] = []byte(index)
	fx.src.version(t, map[string]any{
		"id": "1.8.9",
		"assetIndex": map[string]any{
			"id":   "1.8",
			"sha1": indexSHA,
			"size": len(index),
			"url":  "https://meta.test/indexes/1.8.json",
		},
	})

	res, err := fx.resolver(Options{}).Resolve(context.Background(), "1.8.9")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.AssetIndexID != "1.8" || res.AssetIndex == nil || res.AssetIndex.Path != "assets/indexes/1.8.json" {
		t.Errorf("asset index = %q %+v", res.AssetIndexID, res.AssetIndex)
	}
	if len(res.Assets) != 2 {
		t.Fatalf("assets = %d, want 2 after digest dedupe", len(res.Assets))
	}
	want := "assets/objects/" + shared[:2] + "/" + shared
	if res.Assets[0].Path != want {
		t.Errorf("first asset path = %s, want %s", res.Assets[0].Path, want)
	}
	if res.Assets[0].URL != "https://assets.test/"+shared[:2]+"/"+shared {
		t.Errorf("asset URL = %s", res.Assets[0].URL)
	}
	if !fx.store.Has(*res.AssetIndex) {
		t.Error("asset index not stored")
	}

	// Offline resolution reuses the stored index.
	fx.src.offline = true
	fx.artifacts.offline = true
	if _, err := fx.resolver(Options{}).Resolve(context.Background(), "1.8.9"); err != nil {
		t.Errorf("offline Resolve with stored index: %v", err)
	}
}

func TestResolveGatewayURLs(t *testing.T) {
	fx := newFixture(t)
	lib := library("org.example:gw:1", sha1Of("gw"))
	delete(lib["downloads"].(map[string]any)["artifact"].(map[string]any), "url")
	fx.src.version(t, map[string]any{"id": "gw", "libraries": []any{lib}})

	res, err := fx.resolver(Options{Gateway: "https://ipfs.test/ipfs/"}).Resolve(context.Background(), "gw")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := res.Libraries[0].Ref.URL, "https://ipfs.test/ipfs/org/example/gw/1/gw-1.jar"; got != want {
		t.Errorf("URL = %s, want %s", got, want)
	}
}

func TestResolveMavenSidecarDigest(t *testing.T) {
	fx := newFixture(t)
	content := "fabric loader"
	fx.src.docs["https://maven.test/net/fabricmc/loader/0.15.0/loader-0.15.0.jar.sha1"] = []byte(sha1Of(content) + "  loader-0.15.0.jar\n")
	fx.src.version(t, map[string]any{
		"id": "fabric",
		"libraries": []any{
			map[string]any{"name": "net.fabricmc:loader:0.15.0", "url": "https://maven.test/"},
		},
	})

	res, err := fx.resolver(Options{}).Resolve(context.Background(), "fabric")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ref := res.Libraries[0].Ref
	if ref.Digest.Hex != sha1Of(content) {
		t.Errorf("digest = %s, want sidecar value", ref.Digest)
	}
	if ref.URL != "https://maven.test/net/fabricmc/loader/0.15.0/loader-0.15.0.jar" {
		t.Errorf("URL = %s", ref.URL)
	}

	// Once downloaded, the recorded digest serves offline resolution.
	if err := fx.store.Put(context.Background(), ref, strings.NewReader(content)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	fx.src.offline = true
	res, err = fx.resolver(Options{}).Resolve(context.Background(), "fabric")
	if err != nil {
		t.Fatalf("offline Resolve: %v", err)
	}
	if res.Libraries[0].Ref.Digest.Hex != sha1Of(content) {
		t.Errorf("offline digest = %s", res.Libraries[0].Ref.Digest)
	}
}

func TestResolveClientJar(t *testing.T) {
	fx := newFixture(t)
	fx.src.version(t, map[string]any{
		"id": "1.8.9",
		"downloads": map[string]any{
			"client": map[string]any{"url": "https://client.test/1.8.9.jar", "sha1": sha1Of("client"), "size": 6},
		},
		"libraries": []any{library("org.example:a:1", sha1Of("a"))},
	})
	fx.src.version(t, map[string]any{"id": "1.8.9-forge", "inheritsFrom": "1.8.9"})

	res, err := fx.resolver(Options{}).Resolve(context.Background(), "1.8.9-forge")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Client == nil || res.Client.Path != "versions/1.8.9/1.8.9.jar" {
		t.Fatalf("client = %+v, want parent's jar", res.Client)
	}
	cp := res.Classpath()
	if len(cp) != 2 || cp[len(cp)-1].Kind != store.KindClient {
		t.Errorf("classpath = %+v, want client jar last", cp)
	}
	all := res.Artifacts()
	if all[0].Kind != store.KindClient {
		t.Errorf("first artifact = %+v, want client", all[0])
	}
}

func TestCached(t *testing.T) {
	fx := newFixture(t)
	fx.src.version(t, map[string]any{"id": "1.7.10"})
	fx.src.version(t, map[string]any{"id": "1.12.2"})
	r := fx.resolver(Options{})
	r.Resolve(context.Background(), "1.7.10")
	r.Resolve(context.Background(), "1.12.2")

	ids, err := r.Cached()
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Cached() = %v, want two versions", ids)
	}
}
