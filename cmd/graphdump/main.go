// graphdump renders the commit DAG held in a repository database's plink
// table (§3.1, §4.3) as a Graphviz dot file, the way the teacher's
// cmd/gitgraph parses a git fast-export stream into a dot graph of commit
// relationships. Here the DAG already exists on disk (crosslink wrote it),
// so graphdump is a pure reader: no parsing, just one query for the commits
// and one for all plink edges. Tags are not drawn.
package main

import (
	"fmt"
	"os"

	"github.com/emicklei/dot"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/rcowham/corevcs/catalog"
)

var (
	app = kingpin.New("graphdump", "Render a repository's commit DAG as a Graphviz dot file.")

	repoPath   = app.Arg("repo", "Path to the repository database file.").Required().String()
	outputFile = app.Flag("output", "Dot file to write (default stdout).").Short('o').String()
	squash     = app.Flag("squash", "Omit primary edges out of non-merge commits that have a single child.").Short('s').Bool()
)

// commitNode mirrors the teacher's GitCommit: the minimum per-commit state
// needed to decide which nodes get drawn and how edges are labeled.
type commitNode struct {
	rid        int
	hash       string
	label      string
	childCount int
	mergeCount int
	gNode      dot.Node
	hasNode    bool
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logrus.New()
	logger.Level = logrus.InfoLevel

	repo, err := catalog.OpenRepository(*repoPath, logger)
	if err != nil {
		logger.Fatalf("graphdump: open %s: %v", *repoPath, err)
	}
	defer repo.Close()

	commits, edges, err := loadGraph(repo)
	if err != nil {
		logger.Fatalf("graphdump: %v", err)
	}

	graph := dot.NewGraph(dot.Directed)
	drawGraph(graph, commits, edges, *squash)

	out := os.Stdout
	if *outputFile != "" {
		f, err := os.OpenFile(*outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			logger.Fatalf("graphdump: open %s: %v", *outputFile, err)
		}
		defer f.Close()
		out = nil
		if _, err := f.WriteString(graph.String()); err != nil {
			logger.Fatalf("graphdump: write %s: %v", *outputFile, err)
		}
		return
	}
	fmt.Fprint(out, graph.String())
}

type plinkEdge struct {
	pid, cid int
	isPrimary bool
}

// loadGraph reads every commit (any rid with a "ci" event row, per §3.1's
// event table) and every parent/merge edge (every plink row, per §4.3) from
// the repository database.
func loadGraph(repo *catalog.RepoDB) (map[int]*commitNode, []plinkEdge, error) {
	commits := make(map[int]*commitNode)

	rows, err := repo.Query(`SELECT e.objid, b.hash, e.user, e.comment FROM event e JOIN blob b ON b.rid = e.objid WHERE e.type = 'ci'`)
	if err != nil {
		return nil, nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rid int
		var hash, user, comment string
		if err := rows.Scan(&rid, &hash, &user, &comment); err != nil {
			return nil, nil, fmt.Errorf("scan commit: %w", err)
		}
		short := hash
		if len(short) > 10 {
			short = short[:10]
		}
		commits[rid] = &commitNode{
			rid:   rid,
			hash:  hash,
			label: fmt.Sprintf("%s\n%s: %s", short, user, comment),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	erows, err := repo.Query(`SELECT pid, cid, isprim FROM plink`)
	if err != nil {
		return nil, nil, fmt.Errorf("query plink: %w", err)
	}
	defer erows.Close()
	var edges []plinkEdge
	for erows.Next() {
		var e plinkEdge
		var isprim int
		if err := erows.Scan(&e.pid, &e.cid, &isprim); err != nil {
			return nil, nil, fmt.Errorf("scan plink: %w", err)
		}
		e.isPrimary = isprim != 0
		edges = append(edges, e)
		if c, ok := commits[e.pid]; ok {
			c.childCount++
		}
		if !e.isPrimary {
			if c, ok := commits[e.cid]; ok {
				c.mergeCount++
			}
		}
	}
	if err := erows.Err(); err != nil {
		return nil, nil, err
	}
	return commits, edges, nil
}

// drawGraph draws every plink edge between two known commits in a single
// pass, labelled "p" (primary parent) or "m" (merge parent). A commit gets a
// node the first time one of its edges is drawn, so a commit with no drawn
// edge does not appear. With squash, primary edges out of a non-merge parent
// that has exactly one child are left out.
func drawGraph(graph *dot.Graph, commits map[int]*commitNode, edges []plinkEdge, squash bool) {
	nodeOf := func(c *commitNode) dot.Node {
		if !c.hasNode {
			c.gNode = graph.Node(c.label)
			c.hasNode = true
		}
		return c.gNode
	}

	for _, e := range edges {
		parent, ok := commits[e.pid]
		if !ok {
			continue
		}
		child, ok := commits[e.cid]
		if !ok {
			continue
		}
		if squash && e.isPrimary && parent.childCount == 1 && parent.mergeCount == 0 {
			continue
		}
		label := "p"
		if !e.isPrimary {
			label = "m"
		}
		graph.Edge(nodeOf(parent), nodeOf(child), label)
	}
}
