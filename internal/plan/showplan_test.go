package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showplanWithMissingIndex = `<?xml version="1.0" encoding="utf-16"?>
<ShowPlanXML xmlns="http://schemas.microsoft.com/sqlserver/2004/07/showplan" Version="1.564" Build="15.0.4280.7">
  <BatchSequence>
    <Batch>
      <Statements>
        <StmtSimple StatementText="SELECT * FROM Sales.Orders WHERE CustomerId = 7" StatementId="1" StatementSubTreeCost="4.2285" StatementType="SELECT">
          <QueryPlan CachedPlanSize="24">
            <MissingIndexes>
              <MissingIndexGroup Impact="93.2461">
                <MissingIndex Database="[AdventureWorks]" Schema="[Sales]" Table="[Orders]">
                  <ColumnGroup Usage="EQUALITY">
                    <Column Name="[CustomerId]" ColumnId="2" />
                  </ColumnGroup>
                  <ColumnGroup Usage="INEQUALITY">
                    <Column Name="[OrderDate]" ColumnId="3" />
                  </ColumnGroup>
                  <ColumnGroup Usage="INCLUDE">
                    <Column Name="[Total]" ColumnId="7" />
                    <Column Name="[Status]" ColumnId="8" />
                  </ColumnGroup>
                </MissingIndex>
              </MissingIndexGroup>
            </MissingIndexes>
            <RelOp NodeId="0" PhysicalOp="Clustered Index Scan" LogicalOp="Clustered Index Scan" EstimateRows="112" EstimatedTotalSubtreeCost="4.2285" />
          </QueryPlan>
        </StmtSimple>
      </Statements>
    </Batch>
  </BatchSequence>
</ShowPlanXML>`

const showplanNoAdvisories = `<ShowPlanXML xmlns="http://schemas.microsoft.com/sqlserver/2004/07/showplan">
  <BatchSequence>
    <Batch>
      <Statements>
        <StmtSimple StatementSubTreeCost="0.0032831">
          <QueryPlan>
            <RelOp NodeId="0" PhysicalOp="Clustered Index Seek" LogicalOp="Clustered Index Seek" />
          </QueryPlan>
        </StmtSimple>
      </Statements>
    </Batch>
  </BatchSequence>
</ShowPlanXML>`

func TestParseMissingIndexAdvisory(t *testing.T) {
	extract := Parse(showplanWithMissingIndex, ModeEstimated)

	require.Len(t, extract.MissingIndexes, 1)
	advisory := extract.MissingIndexes[0]

	assert.Equal(t, "AdventureWorks", advisory.Database)
	assert.Equal(t, "Sales", advisory.Schema)
	assert.Equal(t, "Orders", advisory.Table)
	assert.Equal(t, []string{"CustomerId"}, advisory.EqualityColumns)
	assert.Equal(t, []string{"OrderDate"}, advisory.InequalityColumns)
	assert.Equal(t, []string{"Total", "Status"}, advisory.IncludedColumns)
	assert.InDelta(t, 93.2461, advisory.Impact, 1e-9)

	assert.InDelta(t, 4.2285, extract.Cost, 1e-9)
	assert.Equal(t, ModeEstimated, extract.Mode)
}

func TestParseAcceptsDeclaredEncodings(t *testing.T) {
	// The server labels plan documents utf-16 even though the driver
	// delivers them as UTF-8 strings; the label must not stop decoding.
	plan := `<?xml version="1.0" encoding="UTF-16"?>
<ShowPlanXML xmlns="http://schemas.microsoft.com/sqlserver/2004/07/showplan">
  <BatchSequence>
    <Batch>
      <Statements>
        <StmtSimple StatementSubTreeCost="4.2285">
          <QueryPlan>
            <MissingIndexes>
              <MissingIndexGroup Impact="93.2461">
                <MissingIndex Database="[Shop]" Schema="[dbo]" Table="[Orders]">
                  <ColumnGroup Usage="EQUALITY">
                    <Column Name="[CustomerId]" ColumnId="2" />
                  </ColumnGroup>
                </MissingIndex>
              </MissingIndexGroup>
            </MissingIndexes>
          </QueryPlan>
        </StmtSimple>
      </Statements>
    </Batch>
  </BatchSequence>
</ShowPlanXML>`

	for _, label := range []string{`UTF-16`, `utf-16`, `utf-8`} {
		labeled := strings.Replace(plan, `encoding="UTF-16"`, `encoding="`+label+`"`, 1)
		extract := Parse(labeled, ModeEstimated)

		require.Len(t, extract.MissingIndexes, 1, "encoding label %q", label)
		assert.Equal(t, "Orders", extract.MissingIndexes[0].Table)
		assert.InDelta(t, 4.2285, extract.Cost, 1e-9)
	}
}

func TestParseCostFromFirstStatement(t *testing.T) {
	extract := Parse(showplanNoAdvisories, ModeActual)

	assert.Empty(t, extract.MissingIndexes)
	assert.InDelta(t, 0.0032831, extract.Cost, 1e-9)
	assert.Equal(t, ModeActual, extract.Mode)
}

func TestParseConcatenatedDocuments(t *testing.T) {
	extract := Parse(showplanNoAdvisories+"\n"+showplanWithMissingIndex, ModeActual)

	// Cost comes from the first document; advisories accumulate in order.
	assert.InDelta(t, 0.0032831, extract.Cost, 1e-9)
	require.Len(t, extract.MissingIndexes, 1)
	assert.Equal(t, "Orders", extract.MissingIndexes[0].Table)
}

func TestParseDegradesOnBadInput(t *testing.T) {
	cases := []struct {
		name     string
		artifact string
	}{
		{"empty", ""},
		{"whitespace", "  \n  "},
		{"not_xml", "Clustered Index Scan, cost=4.5"},
		{"truncated", "<ShowPlanXML><BatchSequence><Batch><Statements>"},
		{"wrong_root", "<html><body>error page</body></html>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			extract := Parse(tc.artifact, ModeEstimated)
			assert.Empty(t, extract.MissingIndexes)
			assert.Zero(t, extract.Cost)
		})
	}
}

func TestTrimIdentifier(t *testing.T) {
	assert.Equal(t, "Orders", TrimIdentifier("[Orders]"))
	assert.Equal(t, "Orders", TrimIdentifier(" [Orders] "))
	assert.Equal(t, "Orders", TrimIdentifier("Orders"))
	assert.Equal(t, "", TrimIdentifier(""))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "estimated", ModeEstimated.String())
	assert.Equal(t, "actual", ModeActual.String())
}
