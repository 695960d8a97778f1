// Package preferences decides which channels a notification may use.
//
// Manager.ShouldSend applies, in order: the system-wide kill switch, the
// tenant's channel configuration (onsite cannot be disabled), the tenant
// default preference (which may only turn email off), and finally the
// user's effective preference for the notification kind and each channel.
// A tenant veto always wins over a user opt-in.
//
// Effective preferences resolve tenant-specific record, then the user's
// global record, then an all-enabled default. Store reads are cached per
// (user, tenant|"global") key with a TTL; every write invalidates both the
// written key and the user's global key. A background sweep purges expired
// entries until Close is called.
//
//	mgr, err := preferences.NewManager(store,
//		preferences.WithChannelConfigs(storage),
//		preferences.WithSettings(settingsProvider),
//	)
//	if err != nil {
//		return err
//	}
//	defer mgr.Close()
//
//	svc := notifications.NewService(storage, queue, tracker, notifications.WithGate(mgr))
package preferences
