package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	b := NoopBuildHooks{}
	b.OnOutcome(ctx, OutcomeCached)
	b.OnBuildStart(ctx, "lodash@4.17.21", []string{"ios"})
	b.OnBuildComplete(ctx, "lodash@4.17.21", []string{"ios"}, 2, time.Second, nil)
	b.OnDependencyHealed(ctx, "lodash@4.17.21", "tslib")
	b.OnUnexpectedError(ctx, "lodash@4.17.21", errors.New("boom"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "registryMetadata")
	c.OnCacheMiss(ctx, "registryMetadata")
	c.OnCacheSet(ctx, "registryMetadata", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "registry.npmjs.org", "/lodash")
	h.OnResponse(ctx, "GET", "registry.npmjs.org", "/lodash", 200, time.Second)
	h.OnError(ctx, "GET", "registry.npmjs.org", "/lodash", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Build().(NoopBuildHooks); !ok {
		t.Error("Build() should return NoopBuildHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customBuild := &testBuildHooks{}
	SetBuildHooks(customBuild)
	if Build() != customBuild {
		t.Error("SetBuildHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Build().(NoopBuildHooks); !ok {
		t.Error("Reset() should restore NoopBuildHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testBuildHooks{}
	SetBuildHooks(custom)
	SetBuildHooks(nil)

	if Build() != custom {
		t.Error("SetBuildHooks(nil) should be ignored")
	}
}

type testBuildHooks struct{ NoopBuildHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
