package integration

import (
	"os"
	"reflect"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/NiklasRosenstein/equilibrium/examples/localfile"
	"github.com/NiklasRosenstein/equilibrium/internal/admission"
	"github.com/NiklasRosenstein/equilibrium/internal/control"
	"github.com/NiklasRosenstein/equilibrium/internal/controller"
	"github.com/NiklasRosenstein/equilibrium/internal/jsonstore"
	"github.com/NiklasRosenstein/equilibrium/internal/resource"
	"github.com/NiklasRosenstein/equilibrium/internal/rules"
	"github.com/NiklasRosenstein/equilibrium/internal/store"
)

func newContext() *control.Context {
	backing, err := jsonstore.New(GinkgoT().TempDir())
	Expect(err).NotTo(HaveOccurred())
	ctx, err := control.NewContext(backing)
	Expect(err).NotTo(HaveOccurred())
	return ctx
}

func namespace(name string) resource.Resource {
	return resource.Resource{
		APIVersion: "v1", Kind: "Namespace",
		Metadata: resource.Metadata{Name: name},
		Spec:     resource.NewGenericSpec(nil),
	}
}

var widgetType = resource.Type{APIVersion: "v1", Kind: "Widget"}

type widgetSpec struct{ Size int }

func (widgetSpec) Namespaced() bool { return true }

func widgetCodec() control.SpecCodec {
	return control.SpecCodec{
		SpecType: widgetSpec{},
		Decode: func(tree map[string]any) (any, error) {
			size, _ := tree["size"].(float64)
			return widgetSpec{Size: int(size)}, nil
		},
		Encode: func(v any) (map[string]any, error) {
			return map[string]any{"size": float64(v.(widgetSpec).Size)}, nil
		},
	}
}

// Scenario 1: namespace integrity.
var _ = Describe("Namespace integrity", func() {
	It("refuses to delete a namespace with members, and succeeds once it's empty", func() {
		ctx := newContext()
		Expect(ctx.Types.Register(widgetType, widgetCodec())).To(Succeed())

		_, err := ctx.Put(namespace("default"))
		Expect(err).NotTo(HaveOccurred())

		_, err = ctx.Put(resource.Resource{
			APIVersion: "v1", Kind: "Widget",
			Metadata: resource.Metadata{Namespace: "default", Name: "x"},
			Spec:     resource.NewGenericSpec(map[string]any{"size": float64(1)}),
		})
		Expect(err).NotTo(HaveOccurred())

		nsURI := resource.URI{APIVersion: "v1", Kind: "Namespace", Name: "default"}
		err = ctx.Delete(nsURI, true, false)
		Expect(err).To(HaveOccurred())
		var notEmpty *resource.NamespaceNotEmptyError
		Expect(err).To(BeAssignableToTypeOf(notEmpty))

		// No CRUD controller is registered for Widget here, so nothing will
		// ever finalize a soft delete; force the physical removal directly.
		widgetURI := resource.URI{APIVersion: "v1", Kind: "Widget", Namespace: "default", Name: "x"}
		Expect(ctx.Delete(widgetURI, true, true)).To(Succeed())
		Expect(ctx.Delete(nsURI, true, false)).To(Succeed())
	})
})

// Scenario 2: admission mutation.
var _ = Describe("Admission mutation", func() {
	It("lets a registered admission controller label a resource without touching its URI", func() {
		ctx := newContext()
		Expect(ctx.Types.Register(widgetType, widgetCodec())).To(Succeed())
		ctx.Controllers.RegisterAdmissionController(admission.ControllerFunc(func(r resource.Resource) (resource.Resource, error) {
			if r.Metadata.Labels == nil {
				r.Metadata.Labels = map[string]string{}
			}
			r.Metadata.Labels["audited"] = "true"
			return r, nil
		}))

		_, err := ctx.Put(namespace("default"))
		Expect(err).NotTo(HaveOccurred())

		uri := resource.URI{APIVersion: "v1", Kind: "Widget", Namespace: "default", Name: "gear"}
		_, err = ctx.Put(resource.Resource{
			APIVersion: uri.APIVersion, Kind: uri.Kind,
			Metadata: resource.Metadata{Namespace: uri.Namespace, Name: uri.Name},
			Spec:     resource.NewGenericSpec(map[string]any{"size": float64(4)}),
		})
		Expect(err).NotTo(HaveOccurred())

		got, ok, err := ctx.Get(uri)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Metadata.Labels["audited"]).To(Equal("true"))
		Expect(got.URI()).To(Equal(uri))
	})
})

// Scenario 3: CRUD lifecycle, grounded on examples/localfile.
var _ = Describe("CRUD lifecycle", func() {
	It("creates, updates on drift, and tears down on deletion marker", func() {
		ctx := newContext()
		Expect(ctx.Types.Register(localfile.Type, localfile.Codec())).To(Succeed())
		ctrl := controller.NewCRUDController(localfile.Type, localfile.Handler{}, ctx.Types, logr.Discard())
		ctx.Controllers.RegisterResourceController(ctrl)

		_, err := ctx.Put(namespace("default"))
		Expect(err).NotTo(HaveOccurred())

		path := GinkgoT().TempDir() + "/greeting.txt"
		uri := resource.URI{APIVersion: localfile.Type.APIVersion, Kind: localfile.Type.Kind, Namespace: "default", Name: "greeting"}

		_, err = ctx.Put(resource.Resource{
			APIVersion: uri.APIVersion, Kind: uri.Kind,
			Metadata: resource.Metadata{Namespace: uri.Namespace, Name: uri.Name},
			Spec:      resource.NewGenericSpec(map[string]any{"path": path, "content": "hi"}),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Reconcile()).To(Succeed())

		data, err := readFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal("hi"))

		_, err = ctx.Put(resource.Resource{
			APIVersion: uri.APIVersion, Kind: uri.Kind,
			Metadata: resource.Metadata{Namespace: uri.Namespace, Name: uri.Name},
			Spec:      resource.NewGenericSpec(map[string]any{"path": path, "content": "bye"}),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ctx.Reconcile()).To(Succeed())

		data, err = readFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal("bye"))

		Expect(ctx.Delete(uri, true, false)).To(Succeed())

		marked, ok, err := ctx.Get(uri)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(marked.DeletionMarker).NotTo(BeNil())

		Expect(ctx.Reconcile()).To(Succeed())

		_, err = readFile(path)
		Expect(err).To(HaveOccurred())

		_, ok, err = ctx.Get(uri)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

// Scenario 4: rules ambiguity.
var _ = Describe("Rules ambiguity", func() {
	It("fails with MultipleMatchingRulesError when two rules resolve the same output from the same input", func() {
		parseDecimal := funcRule{id: "decimal", sig: rules.Signature{Inputs: []reflect.Type{rules.TypeOf[string]()}, Output: rules.TypeOf[int]()},
			run: func(p rules.Params) (any, error) {
				s, _ := p.Get(rules.TypeOf[string]())
				return len(s.(string)), nil
			}}
		parseHex := funcRule{id: "hex", sig: rules.Signature{Inputs: []reflect.Type{rules.TypeOf[string]()}, Output: rules.TypeOf[int]()},
			run: func(p rules.Params) (any, error) {
				s, _ := p.Get(rules.TypeOf[string]())
				return len(s.(string)) * 2, nil
			}}

		graph, err := rules.NewRulesGraph(parseDecimal, parseHex)
		Expect(err).NotTo(HaveOccurred())
		engine := rules.NewEngine(graph)

		_, err = engine.Get(rules.TypeOf[int](), rules.NewParams().Put("10"))
		Expect(err).To(HaveOccurred())
		var ambiguous *rules.MultipleMatchingRulesError
		Expect(err).To(BeAssignableToTypeOf(ambiguous))
		Expect(err.(*rules.MultipleMatchingRulesError).Candidates).To(HaveLen(2))
	})
})

// Scenario 5: rules subjects vs. caller params precedence.
var _ = Describe("Rules subjects precedence", func() {
	It("lets caller-supplied params override ambient subjects", func() {
		type customType struct{ V int }
		extractV := funcRule{id: "extract-v", sig: rules.Signature{Inputs: []reflect.Type{rules.TypeOf[customType]()}, Output: rules.TypeOf[int]()},
			run: func(p rules.Params) (any, error) {
				c, _ := p.Get(rules.TypeOf[customType]())
				return c.(customType).V, nil
			}}

		graph, err := rules.NewRulesGraph(extractV)
		Expect(err).NotTo(HaveOccurred())
		engine := rules.NewEngine(graph, rules.WithSubjects(rules.NewParams().Put(customType{V: 42})))

		got, err := engine.Get(rules.TypeOf[int](), rules.NewParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(42))

		got, err = engine.Get(rules.TypeOf[int](), rules.NewParams().Put(customType{V: 33}))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(33))
	})
})

// Scenario 6: lock timeout.
var _ = Describe("Lock timeout", func() {
	It("fails a blocking wait after its deadline and a non-blocking request immediately", func() {
		l := store.NewLock(0)
		_, err := l.Enter(store.LockRequest{Block: true}, "")
		Expect(err).NotTo(HaveOccurred())

		start := time.Now()
		_, err = l.Enter(store.LockRequest{Block: true, Timeout: 500 * time.Millisecond}, "")
		elapsed := time.Since(start)
		Expect(err).To(HaveOccurred())
		Expect(elapsed).To(BeNumerically(">=", 500*time.Millisecond))

		_, err = l.Enter(store.LockRequest{Block: false}, "")
		Expect(err).To(HaveOccurred())
	})
})

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type funcRule struct {
	id  string
	sig rules.Signature
	run func(rules.Params) (any, error)
}

func (r funcRule) ID() string                      { return r.id }
func (r funcRule) Signature() rules.Signature      { return r.sig }
func (r funcRule) Run(p rules.Params) (any, error) { return r.run(p) }
