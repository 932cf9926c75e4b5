package inspect

// GraphPage is one node of the page-to-issues graph.
type GraphPage struct {
	URL    string   `json:"url"`
	Type   PageType `json:"type"`
	Score  float64  `json:"score"`
	Issues []Issue  `json:"issues"`
}

// Graph accumulates the page-to-issues adjacency in insertion order. Pages
// are added exactly once; later issues append to the existing node.
type Graph struct {
	order []string
	pages map[string]*GraphPage
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{pages: make(map[string]*GraphPage)}
}

// AddPage registers a page node. Re-adding an existing URL updates its type
// and score without duplicating the node.
func (g *Graph) AddPage(url string, pageType PageType, score float64) {
	if existing, ok := g.pages[url]; ok {
		existing.Type = pageType
		existing.Score = score
		return
	}
	g.order = append(g.order, url)
	g.pages[url] = &GraphPage{URL: url, Type: pageType, Score: score}
}

// AddIssues appends issues to a page node, creating the node if needed.
func (g *Graph) AddIssues(url string, issues []Issue) {
	node, ok := g.pages[url]
	if !ok {
		g.AddPage(url, PageUnknown, 0)
		node = g.pages[url]
	}
	node.Issues = append(node.Issues, issues...)
}

// Pages returns the graph nodes in insertion order.
func (g *Graph) Pages() []GraphPage {
	out := make([]GraphPage, 0, len(g.order))
	for _, url := range g.order {
		out = append(out, *g.pages[url])
	}
	return out
}

// GraphReport is the serialized form of the graph.
type GraphReport struct {
	Pages []GraphPage `json:"pages"`
}

// Report assembles the final graph report.
func (g *Graph) Report() GraphReport {
	return GraphReport{Pages: g.Pages()}
}
