package shared

import (
	"net/http/httptest"
	"testing"
)

func TestParsePageRequestClamps(t *testing.T) {
	req := httptest.NewRequest("GET", "/clients?page=-2&page_size=500", nil)
	got := ParsePageRequest(req)
	if got.Page != 1 || got.Size != MaxPageSize {
		t.Fatalf("unexpected page request %+v", got)
	}
	if got.Offset() != 0 {
		t.Fatalf("expected zero offset, got %d", got.Offset())
	}
}

func TestNewPageLinks(t *testing.T) {
	req := httptest.NewRequest("GET", "/clients?page=2&page_size=10&search=acme", nil)
	pr := ParsePageRequest(req)
	page := NewPage(req, pr, 35, []int{1, 2})

	if page.Pages != 4 || page.Count != 35 {
		t.Fatalf("unexpected totals %+v", page)
	}
	if page.Next == nil || *page.Next != "/clients?page=3&page_size=10&search=acme" {
		t.Fatalf("unexpected next link %v", page.Next)
	}
	if page.Previous == nil || *page.Previous != "/clients?page=1&page_size=10&search=acme" {
		t.Fatalf("unexpected previous link %v", page.Previous)
	}
}

func TestNewPageEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/deals", nil)
	page := NewPage[string](req, ParsePageRequest(req), 0, nil)
	if page.Next != nil || page.Previous != nil {
		t.Fatalf("expected no links for empty page")
	}
	if page.Results == nil || page.Pages != 1 {
		t.Fatalf("expected empty results slice and one page, got %+v", page)
	}
}
