// Package schema defines the tab records kept in the shared store and the
// snapshot format devices report.
//
// # Records
//
// A TabRecord is one row of the browser_tabs table. Its URL is unique
// across the store and its DeviceName names the single device that owns
// it. Only the owning device's reconciliation run may refresh or remove a
// record; any user may delete a record by ID from a list view.
//
// # Snapshots
//
// A Snapshot is the list of tabs one device has open right now:
//
//	tabs:
//	  - url: https://go.dev/doc
//	    title: Documentation
//	    favicon: https://go.dev/favicon.ico
//
// Reading a snapshot:
//
//	snap, err := schema.ReadSnapshotFile("tabs.yaml")
//	for _, tab := range snap.Tabs {
//	    fmt.Println(tab.URL)
//	}
//
// # Presentation helpers
//
// GroupByDevice and Devices shape ListAll results for list views:
//
//	for _, group := range schema.GroupByDevice(records) {
//	    fmt.Printf("%s (%d tabs)\n", group.DeviceName, len(group.Tabs))
//	}
package schema
