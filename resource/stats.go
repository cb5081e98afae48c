package resource

import (
	"github.com/google/uuid"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsString produces a JSON document describing every outstanding buffer, with totals
// for each purpose
func (a *Allocator) BuildStatsString() string {
	a.logger.Debug("Allocator::BuildStatsString")

	a.registryMutex.RLock()
	defer a.registryMutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Outstanding").Int(a.live.Count())

	totals := obj.Name("Purposes").Object()
	for i := 0; i < purposeCount; i++ {
		purposeObj := totals.Name(Purpose(i).String()).Object()
		purposeObj.Name("Count").Int(a.purposeCounts[i])
		purposeObj.Name("Bytes").Int(a.purposeBytes[i])
		purposeObj.End()
	}
	totals.End()

	buffers := obj.Name("Buffers").Array()
	a.live.Iter(func(id uuid.UUID, handle BufferHandle) bool {
		bufferObj := buffers.Object()
		printBuffer(&bufferObj, handle)
		bufferObj.End()
		return false
	})
	buffers.End()

	obj.End()

	return string(writer.Bytes())
}

func printBuffer(json *jwriter.ObjectState, handle BufferHandle) {
	json.Name("ID").String(handle.ID.String())
	json.Name("Purpose").String(handle.Purpose.String())
	json.Name("Size").Int(handle.Size)
	json.Name("HostVisible").Bool(handle.HostVisible)

	if handle.Name != "" {
		json.Name("Name").String(handle.Name)
	}
}
