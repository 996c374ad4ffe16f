package radio

import (
	"testing"
)

func mustParse(t *testing.T, body string) *StatusDocument {
	t.Helper()
	doc, err := ParseStatus([]byte(body))
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	return doc
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		mount string
		want  StationInfo
	}{
		{
			name:  "missing artist stays unknown",
			body:  `{"icestats":{"source":[{"server_name":"Radio1","title":"Song A","server_description":"mystream"}]}}`,
			mount: "mystream",
			want:  StationInfo{Station: "Radio1", Song: "Song A", Artist: Unknown, Info: Unknown},
		},
		{
			name: "last match wins",
			body: `{"icestats":{"source":[
				{"server_name":"A","artist":"First","server_description":"mystream"},
				{"server_name":"B","server_description":"mystream"}]}}`,
			mount: "mystream",
			want:  StationInfo{Station: "B", Song: Unknown, Artist: "First", Info: Unknown},
		},
		{
			name:  "no match",
			body:  `{"icestats":{"source":[{"server_name":"Other","title":"X","listenurl":"http://h:8000/other"}]}}`,
			mount: "mystream",
			want:  unknownInfo(),
		},
		{
			name: "listenurl picks the right mount",
			body: `{"icestats":{"source":[
				{"server_name":"Low","title":"Low Song","listenurl":"http://localhost:8000/mystream-low","server_description":"like mystream but worse"},
				{"server_name":"High","title":"High Song","artist":"Band","yp_currently_playing":"Band - High Song","listenurl":"http://localhost:8000/mystream"}]}}`,
			mount: "mystream",
			want:  StationInfo{Station: "High", Song: "High Song", Artist: "Band", Info: "Band - High Song"},
		},
		{
			name:  "single object source",
			body:  `{"icestats":{"source":{"server_name":"Solo","title":"Only","listenurl":"http://h:8000/solo"}}}`,
			mount: "solo",
			want:  StationInfo{Station: "Solo", Song: "Only", Artist: Unknown, Info: Unknown},
		},
		{
			name:  "empty sources",
			body:  `{"icestats":{"source":[]}}`,
			mount: "mystream",
			want:  unknownInfo(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(mustParse(t, tt.body), tt.mount)
			if got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractInfo(t *testing.T) {
	doc := mustParse(t, `{"icestats":{"source":[{"server_name":"Radio1","title":"Song A","listenurl":"http://host.example:8000/mystream"}]}}`)

	tests := []struct {
		field FieldKind
		want  string
	}{
		{field: FieldStation, want: "Radio1"},
		{field: FieldSong, want: "Song A"},
		{field: FieldArtist, want: Unknown},
		{field: FieldInfo, want: Unknown},
		{field: FieldKind(42), want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			if got := ExtractInfo(doc, "mystream", tt.field); got != tt.want {
				t.Errorf("ExtractInfo(%v) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestExtract_NilDocument(t *testing.T) {
	if got := Extract(nil, "mystream"); got != unknownInfo() {
		t.Errorf("Extract(nil) = %+v, want all unknown", got)
	}
}
