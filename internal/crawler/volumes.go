package crawler

// Volumes is an ordered label to URL collection. Setting an existing label
// overwrites its URL in place.
type Volumes struct {
	order []string
	urls  map[string]string
}

// NewVolumes returns an empty collection.
func NewVolumes() *Volumes {
	return &Volumes{urls: make(map[string]string)}
}

// Set stores url under label.
func (v *Volumes) Set(label, url string) {
	if v.urls == nil {
		v.urls = make(map[string]string)
	}
	if _, ok := v.urls[label]; !ok {
		v.order = append(v.order, label)
	}
	v.urls[label] = url
}

// Len returns the number of distinct labels.
func (v *Volumes) Len() int {
	if v == nil {
		return 0
	}
	return len(v.order)
}

// Refs expands the collection into VolumeRefs for journal, in discovery order.
func (v *Volumes) Refs(journal string) []VolumeRef {
	if v == nil {
		return nil
	}
	refs := make([]VolumeRef, 0, len(v.order))
	for _, label := range v.order {
		refs = append(refs, VolumeRef{Journal: journal, Label: label, URL: v.urls[label]})
	}
	return refs
}
