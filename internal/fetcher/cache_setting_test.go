package fetcher

import (
	"net/url"
	"testing"
)

func TestCacheSettingShouldUse(t *testing.T) {
	reloadSome := CacheReloadSome([]string{
		"https://deno.land/std",
		"https://deno.land/x/example/mod.ts",
	})

	fixtures := []struct {
		name      string
		setting   CacheSetting
		specifier string
		expected  bool
	}{
		{"use always allows", CacheUse(), "https://deno.land/mod.ts", true},
		{"only always allows", CacheOnly(), "https://deno.land/mod.ts", true},
		{"reload-all always denies", CacheReloadAll(), "https://deno.land/mod.ts", false},
		{"zero value behaves like use", CacheSetting{}, "https://deno.land/mod.ts", true},

		{"exact match", reloadSome, "https://deno.land/x/example/mod.ts", false},
		{"exact match ignores fragment", reloadSome, "https://deno.land/x/example/mod.ts#frag", false},
		{"exact match ignores query", reloadSome, "https://deno.land/x/example/mod.ts?v=1", false},
		{"subtree prefix match", reloadSome, "https://deno.land/std/http/server.ts", false},
		{"subtree root match", reloadSome, "https://deno.land/std", false},
		{"unrelated specifier", reloadSome, "https://deno.land/other.ts", true},
		{"unrelated host", reloadSome, "https://example.com/std/mod.ts", true},
		{"prefix is not substring matching", reloadSome, "https://deno.land/stdlib/mod.ts", true},
	}

	for _, fixture := range fixtures {
		u, err := url.Parse(fixture.specifier)
		if err != nil {
			t.Fatalf("%s: parse error: %v", fixture.name, err)
		}
		if actual := fixture.setting.ShouldUse(u); actual != fixture.expected {
			t.Errorf("%s: ShouldUse(%q) = %v, expected %v", fixture.name, fixture.specifier, actual, fixture.expected)
		}
	}
}

func TestCacheSettingIsOnly(t *testing.T) {
	if !CacheOnly().IsOnly() {
		t.Fatalf("CacheOnly should report IsOnly")
	}
	if CacheUse().IsOnly() || CacheReloadAll().IsOnly() {
		t.Fatalf("only the cached-only setting reports IsOnly")
	}
}
