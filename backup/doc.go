// Package backup runs one full backup pass over all configured sources.
//
// Every source is discovered concurrently and every discovered repository is
// synced in its own goroutine. The number of in-flight repository syncs across
// all sources can be limited with Config.Concurrency. Failures are isolated,
// a failing source or repository is logged and counted in the Report but it
// never stops the other ones.
//
// # Usages
//
//	conf := backup.Config{
//		Target: "/srv/git-backup",
//		Sources: []backup.Source{
//			{GitHub: &provider.GitHubConfig{User: "alice", Token: token}},
//		},
//	}
//	if err := conf.ValidateAndApplyDefaults(home); err != nil {
//		panic(err)
//	}
//
//	b, err := backup.New(conf, logger.With("logger", "git-backup"))
//	if err != nil {
//		panic(err)
//	}
//	report := b.Run(ctx)
package backup
