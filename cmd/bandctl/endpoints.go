package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/bandlink/internal/transport/goble"
)

// endpointsCmd represents the endpoints command
var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the logical endpoints and their GATT characteristics",
	Long: `Lists every logical endpoint the protocol engine uses together with the GATT
service and characteristic it is bound to. No connection is made.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printEndpoints(cmd.OutOrStdout(), goble.DefaultEndpoints())
	},
}

// printEndpoints writes the endpoint table in map order.
func printEndpoints(out io.Writer, endpoints *goble.EndpointMap) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tSERVICE\tCHARACTERISTIC")
	for pair := endpoints.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", pair.Key, pair.Value.Service, pair.Value.Characteristic)
	}
	return w.Flush()
}
