package chat

// SuggestedQuestions are offered while the current session is empty
var SuggestedQuestions = []string{
	"Apa saja persyaratan untuk mengurus izin usaha?",
	"Bagaimana prosedur pengajuan Persetujuan Bangunan Gedung (PBG)?",
	"Berapa lama waktu proses penerbitan izin?",
	"Apa itu DPMPTSP?",
	"Dokumen apa yang diperlukan untuk Nomor Induk Berusaha (NIB)?",
	"Bagaimana cara mengecek status permohonan izin saya?",
}

// Suggestions returns the suggested questions when the current session has
// no messages yet
func (c *Controller) Suggestions() []string {
	if len(c.Messages()) > 0 {
		return nil
	}
	return append([]string(nil), SuggestedQuestions...)
}
