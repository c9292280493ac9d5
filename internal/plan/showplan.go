// Package plan interprets SQL Server SHOWPLAN XML artifacts.
//
// The interpreter extracts missing-index advisories and the statement cost
// figure. It never reimplements the engine's cost model; it only reads the
// artifact the engine produced.
package plan

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Mode distinguishes how the plan artifact was retrieved.
type Mode int

const (
	// ModeEstimated is a plan produced without executing the statement.
	ModeEstimated Mode = iota
	// ModeActual is a post-execution plan with runtime counters.
	ModeActual
)

func (m Mode) String() string {
	if m == ModeActual {
		return "actual"
	}
	return "estimated"
}

// MissingIndexAdvisory is one missing-index hint located in the plan, in
// document order. Column groups keep the engine's usage split: equality
// columns, inequality columns, and included (covering) columns.
type MissingIndexAdvisory struct {
	Database          string
	Schema            string
	Table             string
	EqualityColumns   []string
	InequalityColumns []string
	IncludedColumns   []string
	Impact            float64 // engine hint, 0 when absent
}

// Extract is the interpreter's output for one plan artifact.
type Extract struct {
	Mode           Mode
	MissingIndexes []MissingIndexAdvisory
	Cost           float64 // StatementSubTreeCost of the first statement
}

type showPlanXML struct {
	Batches []struct {
		Statements []stmtSimple `xml:"Statements>StmtSimple"`
	} `xml:"BatchSequence>Batch"`
}

type stmtSimple struct {
	SubTreeCost string     `xml:"StatementSubTreeCost,attr"`
	QueryPlan   *queryPlan `xml:"QueryPlan"`
}

type queryPlan struct {
	MissingIndexGroups []missingIndexGroup `xml:"MissingIndexes>MissingIndexGroup"`
}

type missingIndexGroup struct {
	Impact  float64        `xml:"Impact,attr"`
	Indexes []missingIndex `xml:"MissingIndex"`
}

type missingIndex struct {
	Database     string        `xml:"Database,attr"`
	Schema       string        `xml:"Schema,attr"`
	Table        string        `xml:"Table,attr"`
	ColumnGroups []columnGroup `xml:"ColumnGroup"`
}

type columnGroup struct {
	Usage   string      `xml:"Usage,attr"`
	Columns []xmlColumn `xml:"Column"`
}

type xmlColumn struct {
	Name string `xml:"Name,attr"`
}

// Parse interprets a SHOWPLAN XML artifact. An empty, missing, or malformed
// artifact yields an empty extraction, never an error; an advisory engine
// must keep going when the plan is unusable.
func Parse(artifact string, mode Mode) Extract {
	extract := Extract{Mode: mode}
	if strings.TrimSpace(artifact) == "" {
		return extract
	}

	// Actual-mode retrieval can return one XML document per statement
	// concatenated in a single artifact; decode them all in order.
	decoder := xml.NewDecoder(strings.NewReader(artifact))
	// The server declares utf-16 in the XML prolog, but the driver hands the
	// artifact over as a Go string that is already UTF-8.
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	costSeen := false
	for {
		var doc showPlanXML
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			logrus.WithError(err).Debug("malformed plan artifact, extraction truncated")
			break
		}
		for _, batch := range doc.Batches {
			for _, stmt := range batch.Statements {
				if !costSeen && stmt.SubTreeCost != "" {
					if cost, err := strconv.ParseFloat(stmt.SubTreeCost, 64); err == nil {
						extract.Cost = cost
						costSeen = true
					}
				}
				if stmt.QueryPlan == nil {
					continue
				}
				for _, group := range stmt.QueryPlan.MissingIndexGroups {
					for _, idx := range group.Indexes {
						extract.MissingIndexes = append(extract.MissingIndexes, newAdvisory(group, idx))
					}
				}
			}
		}
	}
	return extract
}

func newAdvisory(group missingIndexGroup, idx missingIndex) MissingIndexAdvisory {
	advisory := MissingIndexAdvisory{
		Database: TrimIdentifier(idx.Database),
		Schema:   TrimIdentifier(idx.Schema),
		Table:    TrimIdentifier(idx.Table),
		Impact:   group.Impact,
	}
	for _, cg := range idx.ColumnGroups {
		names := make([]string, 0, len(cg.Columns))
		for _, col := range cg.Columns {
			names = append(names, TrimIdentifier(col.Name))
		}
		switch strings.ToUpper(cg.Usage) {
		case "EQUALITY":
			advisory.EqualityColumns = append(advisory.EqualityColumns, names...)
		case "INEQUALITY":
			advisory.InequalityColumns = append(advisory.InequalityColumns, names...)
		case "INCLUDE":
			advisory.IncludedColumns = append(advisory.IncludedColumns, names...)
		}
	}
	return advisory
}

// TrimIdentifier removes bracket quoting from a T-SQL identifier part.
func TrimIdentifier(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return s
}
