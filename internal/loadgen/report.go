package loadgen

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteTable writes reports as an aligned comparison table, one row per mode.
func WriteTable(w io.Writer, reports []Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "MODE\tEXECUTOR\tREQUESTS\tFAILED\tREQ/S\tMEAN\tSTDDEV\tP50\tP95\tP99\tMAX\t")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Mode,
			executorNames(r.Executors),
			r.Requests,
			r.Failures,
			r.Throughput,
			ms(r.Mean), ms(r.StdDev), ms(r.P50), ms(r.P95), ms(r.P99), ms(r.Max),
		)
	}
	return tw.Flush()
}

func executorNames(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	return strings.Join(slices.Sorted(maps.Keys(counts)), ",")
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
