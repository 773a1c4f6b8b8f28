// Package daemon keeps a device's open tabs reconciled with the shared store.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - SnapshotWatcher: fsnotify-based monitoring of the snapshot file a
//     browser extension writes
//   - Daemon: decides when to run, reads the tab source and drives the
//     reconciler
//
// # Triggers
//
// A run happens:
//
//   - once when the daemon starts
//   - on every Config.Interval tick
//   - after Config.WatchFile changes and then stays quiet for
//     Config.DebounceInterval
//   - when TriggerNow is called (merged if one is already pending)
//
// Runs are serialized. A failed run, including a snapshot that could not
// be read, is logged and recorded in Status; the next trigger retries.
//
// # Usage
//
//	r := sync.New(database, prefs.IgnoredURLs, nil)
//	src := &browser.FileSource{Path: prefs.SnapshotFile}
//
//	d, err := daemon.New(r, src, "Laptop", &daemon.Config{
//	    Interval:         5 * time.Minute,
//	    WatchFile:        prefs.SnapshotFile,
//	    DebounceInterval: 500 * time.Millisecond,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Snapshot Watching
//
// The watcher observes the snapshot file's directory and filters for the
// file itself, so atomic replace-by-rename is seen as OpCreate:
//
//	sw, err := daemon.NewSnapshotWatcher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sw.Stop()
//
//	if err := sw.Start("/home/me/.config/tabsync/snapshot.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range sw.Events() {
//	    log.Printf("%s %s", event.Op, event.Path)
//	}
package daemon
