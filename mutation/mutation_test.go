package mutation

import (
	"errors"
	"testing"
)

func TestDecodeBatch(t *testing.T) {
	data := []byte(`{"id":"b1","page_id":"p1","seq":3,"records":[
		{"op":"insert","xpath":"/html/body/div[2]","html":"<div>x</div>"},
		{"op":"attr","xpath":"/html/body/div","name":"class","value":"on"},
		{"op":"text","xpath":"/html/body/p/text()","value":"hi"},
		{"op":"remove","xpath":"/html/body/span"}
	]}`)
	b, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if b.Seq != 3 || len(b.Records) != 4 {
		t.Errorf("batch: got seq %d, %d records", b.Seq, len(b.Records))
	}
	if b.Records[0].Op != OpInsert {
		t.Errorf("op: got %q, want insert", b.Records[0].Op)
	}
}

func TestDecodeBatch_Invalid(t *testing.T) {
	cases := []string{
		`{"page_id":"p","records":[{"op":"insert","xpath":"/html"}]}`,
		`{"page_id":"p","records":[{"op":"attr","xpath":"/html"}]}`,
		`{"page_id":"p","records":[{"op":"explode","xpath":"/html"}]}`,
		`{"records":[]}`,
	}
	for _, c := range cases {
		if _, err := DecodeBatch([]byte(c)); !errors.Is(err, ErrInvalid) {
			t.Errorf("DecodeBatch(%s): got %v, want ErrInvalid", c, err)
		}
	}
	if _, err := DecodeBatch([]byte(`{`)); err == nil {
		t.Error("malformed json: want error")
	}
}

func TestDecodeSnapshot_Hash(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"id":"s","page_id":"p","html":"PGh0bWw+PC9odG1sPg=="}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if s.HTMLHash != HashHTML([]byte("<html></html>")) {
		t.Errorf("HTMLHash: got %q", s.HTMLHash)
	}

	if _, err := DecodeSnapshot([]byte(`{"id":"s","page_id":"p","html":"PGh0bWw+PC9odG1sPg==","html_hash":"00"}`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("hash mismatch: got %v, want ErrInvalid", err)
	}
}

func TestHashHTML(t *testing.T) {
	h := HashHTML([]byte("<html><body>test</body></html>"))
	if len(h) != 64 {
		t.Errorf("HashHTML length: got %d, want 64", len(h))
	}
}
