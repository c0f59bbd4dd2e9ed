// Package harness runs end-to-end query scenarios against the repository.
//
// A scenario seeds one storage kind with rows, compiles its CUE mappings
// and checks a list of queries:
//
//	name: blog_paging
//	description: "Paging through posts"
//	kind: memory
//	per_page: 20
//	mappings: |
//	  mapping: "blog.post": memory: {
//	    key: "posts"
//	    attributes: {
//	      id:    "post_id"
//	      title: {}
//	    }
//	  }
//	rows:
//	  posts:
//	    - {post_id: 1, title: "Hello"}
//	queries:
//	  - name: first_page
//	    search: "blog.post order id desc"
//	    per_page: 10
//	    expect:
//	      count: 1
//	      ids: [1]
//
// Each run starts from fresh storage: a map for memory, a temporary
// directory for file and an in-memory SQLite database for relational.
// RunWithGolden additionally snapshots a text report of every query under
// testdata/golden.
package harness
