package sim

import (
	"fmt"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// report prints the terminal settlement summary.
func (s *Simulator) report(run domain.RunRecord) {
	fmt.Fprintf(s.out, "\nSimulation complete: %s\n", run.File)
	fmt.Fprintf(s.out, "Range [%.2f, %.2f] resolved %s\n\n", run.Contract.Lower, run.Contract.Upper, run.Outcome)

	table := tablewriter.NewWriter(s.out)
	table.Header("Side", "Contracts", "Cost", "Payout")

	yesPayout, noPayout := 0.0, 0.0
	if run.Outcome == domain.Yes {
		yesPayout = float64(run.YesContracts)
	} else {
		noPayout = float64(run.NoContracts)
	}

	table.Append("YES",
		fmt.Sprintf("%d", run.YesContracts),
		fmt.Sprintf("$%.2f", run.YesCost),
		fmt.Sprintf("$%.2f", yesPayout),
	)
	table.Append("NO",
		fmt.Sprintf("%d", run.NoContracts),
		fmt.Sprintf("$%.2f", run.NoCost),
		fmt.Sprintf("$%.2f", noPayout),
	)
	table.Render()

	fmt.Fprintf(s.out, "\nFinal position: %+d  Realized PnL: $%.2f  Events logged: %d\n",
		run.Position, run.RealizedPnL, len(run.Marks))
}
