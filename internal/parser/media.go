package parser

import "fmt"

const (
	PhotoWidthFull  = 1200
	PhotoWidthSmall = 400
)

func VideoURL(server, id string) string {
	return fmt.Sprintf("https://vr-1.ozone.ru/sashimi/video-%s/%s/asset_1_h264.mp4", server, id)
}

func PhotoURL(server, id, ext string, width int) string {
	return fmt.Sprintf("https://ir.ozone.ru/s3/rp-photo-%s/wc%d/%s.%s", server, width, id, ext)
}

func CoverURL(server, id, ext string) string {
	return fmt.Sprintf("https://ir.ozone.ru/s3/multimedia-w/cover/%s/%s.%s", server, id, ext)
}
