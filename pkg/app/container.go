package app

import (
	"github.com/decker502/seqanim/pkg/render"
)

// hostContainer 引擎的宿主容器
// 尺寸跟随 Layout 传入的窗口尺寸
type hostContainer struct {
	newDevice     func() (render.Device, error)
	width, height int
}

func newEbitenContainer(stats *render.Stats, width, height int) *hostContainer {
	return &hostContainer{
		newDevice: func() (render.Device, error) { return render.NewEbitenDevice(stats), nil },
		width:     width,
		height:    height,
	}
}

func (c *hostContainer) NewDevice() (render.Device, error) {
	return c.newDevice()
}

func (c *hostContainer) Size() (int, int) {
	return c.width, c.height
}
