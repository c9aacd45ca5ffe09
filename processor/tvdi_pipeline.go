package processor

import (
	"golang.org/x/net/context"
)

type TVDIPipeline struct {
	Context context.Context
	Error   chan error
	CLevel  int
}

func InitTVDIPipeline(ctx context.Context, cLevel int, errChan chan error) *TVDIPipeline {
	return &TVDIPipeline{
		Context: ctx,
		Error:   errChan,
		CLevel:  cLevel,
	}
}

// Process wires the stages up for one NDVI/LST pair and returns the
// channel the TVDI product will arrive on. Interval classification
// runs concurrently, everything downstream of the merger is
// sequential.
func (tp *TVDIPipeline) Process(req *TVDIRequest) chan *TVDIProduct {
	splt := NewIntervalSplitter(tp.Context, tp.Error)
	go func() {
		splt.In <- req
		close(splt.In)
	}()

	ec := NewEdgeClassifier(tp.Context, req.ROI, tp.CLevel, req.Verbose, tp.Error)
	em := NewEdgeMerger(tp.Context, req.NDVI.Width, req.NDVI.Height, req.Verbose, tp.Error)
	ef := NewEdgeFitter(tp.Context, req.NDVI, req.LST, req.ROI, req.Verbose, tp.Error)
	ev := NewTVDIEvaluator(tp.Context, req.NDVI, req.LST, req.ROI, req.Verbose, tp.Error)

	ec.In = splt.Out
	em.In = ec.Out
	ef.In = em.Out
	ev.In = ef.Out

	go splt.Run()
	go ec.Run()
	go em.Run()
	go ef.Run()
	go ev.Run()

	return ev.Out
}
