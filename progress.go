package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/utilitywarehouse/git-backup/repository"
)

// progressBar shows synced repositories, total grows as sources are
// discovered
type progressBar struct {
	bar *pb.ProgressBar
}

func newProgressBar() *progressBar {
	return &progressBar{bar: pb.Full.Start64(0)}
}

func (p *progressBar) Discovered(_ string, count int) {
	p.bar.AddTotal(int64(count))
}

func (p *progressBar) Synced(_ repository.Descriptor, _ repository.Result, _ error) {
	p.bar.Increment()
}

func (p *progressBar) Finish() {
	p.bar.Finish()
}
