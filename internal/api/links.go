package api

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/stations/search>; rel="search"`,
		`</api/v1/map/sessions>; rel="sessions"`,
		`</api/v1/map/settings>; rel="settings"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/data/observation/list>; rel="stations"`,
	},
	"/api/v1/stations/search": {
		`</api/v1/stations/nearest>; rel="nearest"`,
		`</api/data/observation/list>; rel="collection"`,
	},
	"/api/v1/stations/{id}": {
		`</api/data/observation/list>; rel="collection"`,
	},
	"/api/v1/map/sessions/{id}": {
		`</api/v1/map/sessions>; rel="collection"`,
		`</api/v1/map/settings>; rel="settings"`,
	},
	"/api/v1/map/sessions/{id}/clusters/{handle}/leaves": {
		`</api/v1/map/sessions>; rel="up"`,
	},
	"/api/v1/map/settings": {
		`</api/v1/map/sessions>; rel="sessions"`,
	},
}

// Links returns the static Link header table for humastar.LinkTransformer.
func Links() map[string][]string {
	return links
}
